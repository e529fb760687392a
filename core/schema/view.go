package schema

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// ViewOverride replaces the component and/or props of the leaf routes of a
// module whose accumulated path matches View.
type ViewOverride struct {
	Module    string `mapstructure:"module" yaml:"module" json:"module"`
	View      string `mapstructure:"view" yaml:"view" json:"view"`
	Component any    `mapstructure:"component" yaml:"component,omitempty" json:"component,omitempty"`
	Props     any    `mapstructure:"props" yaml:"props,omitempty" json:"props,omitempty"`
}

// Valid reports whether both Module and View are set.
func (v ViewOverride) Valid() bool {
	return v.Module != "" && v.View != ""
}

// Pattern compiles View. Views are written as JavaScript regular expressions,
// so the pattern is compiled with ECMAScript semantics.
func (v ViewOverride) Pattern() (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(v.View, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("compile view %q for module %q: %w", v.View, v.Module, err)
	}
	return re, nil
}
