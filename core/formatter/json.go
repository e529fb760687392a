package formatter

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/schema"
)

// The documents below are shared by the json and yaml formatters.

type modulesDoc struct {
	Count   int             `json:"count" yaml:"count"`
	Modules []ModuleSummary `json:"modules" yaml:"modules"`
}

type routesDoc struct {
	Count  int     `json:"count" yaml:"count"`
	Routes []Route `json:"routes" yaml:"routes"`
}

// errorDoc describes a failed pass. Kind is one of not_found, load, cycle,
// dependency, reference or precondition when the failure is recognised.
type errorDoc struct {
	Error  string   `json:"error" yaml:"error"`
	Kind   string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Module string   `json:"module,omitempty" yaml:"module,omitempty"`
	Cycle  []string `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

var errorKinds = []struct {
	target error
	kind   string
}{
	{compose.ErrNotFound, "not_found"},
	{compose.ErrLoadFailed, "load"},
	{compose.ErrCycle, "cycle"},
	{compose.ErrDependency, "dependency"},
	{compose.ErrReference, "reference"},
	{compose.ErrPrecondition, "precondition"},
}

func newModulesDoc(modules []ModuleSummary) modulesDoc {
	if modules == nil {
		modules = []ModuleSummary{}
	}
	return modulesDoc{Count: len(modules), Modules: modules}
}

func newRoutesDoc(routes []*schema.RouteNode) routesDoc {
	return routesDoc{Count: schema.CountNodes(routes), Routes: Routes(routes)}
}

func newErrorDoc(err error) errorDoc {
	doc := errorDoc{Error: err.Error()}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			doc.Kind = k.kind
			break
		}
	}
	var le *compose.LoadError
	if errors.As(err, &le) {
		doc.Module = le.Name
	}
	var ce *compose.CycleError
	if errors.As(err, &ce) {
		doc.Cycle = ce.Cycle
	}
	return doc
}

// JSONFormatter writes machine-readable JSON documents.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter { return &JSONFormatter{} }

func (f *JSONFormatter) Name() string        { return "json" }
func (f *JSONFormatter) Description() string { return "JSON documents" }

// FormatModules writes {"count", "modules"}.
func (f *JSONFormatter) FormatModules(w io.Writer, modules []ModuleSummary, opts FormatOptions) error {
	return writeJSON(w, newModulesDoc(modules), opts.Compact)
}

// FormatRoutes writes {"count", "routes"} where count includes every
// descendant node.
func (f *JSONFormatter) FormatRoutes(w io.Writer, routes []*schema.RouteNode, opts FormatOptions) error {
	return writeJSON(w, newRoutesDoc(routes), opts.Compact)
}

// FormatError writes {"error", "kind", ...}; always indented.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, newErrorDoc(err), false)
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		panic(err)
	}
}
