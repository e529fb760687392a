package formatter

import (
	"io"

	"github.com/artpar/modcompose/core/schema"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes the same documents as JSONFormatter in YAML.
type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter { return &YAMLFormatter{} }

func (f *YAMLFormatter) Name() string        { return "yaml" }
func (f *YAMLFormatter) Description() string { return "YAML documents" }

func (f *YAMLFormatter) FormatModules(w io.Writer, modules []ModuleSummary, _ FormatOptions) error {
	return writeYAML(w, newModulesDoc(modules))
}

func (f *YAMLFormatter) FormatRoutes(w io.Writer, routes []*schema.RouteNode, _ FormatOptions) error {
	return writeYAML(w, newRoutesDoc(routes))
}

func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	return writeYAML(w, newErrorDoc(err))
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func init() {
	if err := Register(NewYAMLFormatter()); err != nil {
		panic(err)
	}
	if err := DefaultRegistry.Alias("yml", "yaml"); err != nil {
		panic(err)
	}
}
