package schema

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/copystructure"
)

// Reserved config keys.
const (
	KeyDependencies        = "dependencies"
	KeyBackendDependencies = "backendDependencies"
	KeyViews               = "views"
)

// Config is a module's free-form configuration.
type Config map[string]any

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	cpy, err := copystructure.Copy(map[string]any(c))
	if err != nil {
		// Values that cannot be walked are shared instead of copied.
		out := make(Config, len(c))
		for k, v := range c {
			out[k] = v
		}
		return out
	}
	return Config(cpy.(map[string]any))
}

// Dependencies decodes the dependencies entry. A missing entry yields nil.
func (c Config) Dependencies() ([]DependencyRef, error) {
	raw, ok := c[KeyDependencies]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []DependencyRef:
		for _, d := range v {
			items = append(items, d)
		}
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return nil, &DependencyError{Value: raw, Reason: "dependencies must be a list"}
	}

	refs := make([]DependencyRef, 0, len(items))
	for _, item := range items {
		ref, err := ParseDependencyRef(item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// BackendDependencies returns the string entries of backendDependencies.
// Anything other than a list yields nil.
func (c Config) BackendDependencies() []string {
	switch v := c[KeyBackendDependencies].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Views decodes the views entry. Entries that are not maps are skipped.
func (c Config) Views() ([]ViewOverride, error) {
	raw, ok := c[KeyViews]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []ViewOverride:
		return v, nil
	case []any:
		views := make([]ViewOverride, 0, len(v))
		for i, item := range v {
			m, ok := asMap(item)
			if !ok {
				continue
			}
			var view ViewOverride
			if err := decodeMap(m, &view); err != nil {
				return nil, fmt.Errorf("views[%d]: %w", i, err)
			}
			views = append(views, view)
		}
		return views, nil
	default:
		return nil, fmt.Errorf("views must be a list, got %T", raw)
	}
}

// MergeShallow returns a new config holding dst's keys overwritten by src's.
func MergeShallow(dst, src Config) Config {
	out := make(Config, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MergeDeep returns a new config in which nested maps present on both sides
// are merged recursively and every other src value replaces dst's.
func MergeDeep(dst, src Config) Config {
	if dst == nil && src == nil {
		return nil
	}
	out := make(Config, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sm, ok := asMap(v); ok {
			if dm, ok := asMap(out[k]); ok {
				out[k] = map[string]any(MergeDeep(dm, sm))
				continue
			}
		}
		out[k] = v
	}
	return out
}

// AsConfig converts a loosely typed value into a Config.
func AsConfig(v any) (Config, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	return Config(m), true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func decodeMap(in map[string]any, out any) error {
	return decode(in, out, true)
}

func decode(in map[string]any, out any, strict bool) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "mapstructure",
		ErrorUnused: strict,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}
