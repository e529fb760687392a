package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a descriptor file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Extensions lists the file extensions recognized by FormatFromPath, in the
// order loaders probe them.
var Extensions = []string{".yaml", ".yml", ".json", ".toml"}

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported descriptor file %s", path)
	}
}

// ParseFile parses and validates a module descriptor file.
func ParseFile(path string) (*Descriptor, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	desc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// Parse parses and validates a module descriptor.
func Parse(data []byte, format Format) (*Descriptor, error) {
	var desc Descriptor
	if err := unmarshal(data, format, &desc); err != nil {
		return nil, err
	}

	if err := Validate(&desc); err != nil {
		if desc.Name != "" {
			return nil, fmt.Errorf("validate module %q: %w", desc.Name, err)
		}
		return nil, fmt.Errorf("validate module: %w", err)
	}

	return &desc, nil
}

// ParseBundleFile parses a localization file. See ParseBundle.
func ParseBundleFile(path, locale string) (Bundle, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	bundle, err := ParseBundle(data, format, locale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bundle, nil
}

// ParseBundle parses localized messages. With a locale, the document holds
// the messages of that locale; otherwise it maps locales to messages. Nested
// message maps are flattened into dotted keys.
func ParseBundle(data []byte, format Format, locale string) (Bundle, error) {
	var doc map[string]any
	if err := unmarshal(data, format, &doc); err != nil {
		return nil, err
	}

	bundle := make(Bundle)
	if locale != "" {
		bundle[locale] = flattenMessages(doc)
		return bundle, nil
	}

	for loc, v := range doc {
		messages, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("locale %q: expected a map of messages, got %T", loc, v)
		}
		bundle[loc] = flattenMessages(messages)
	}
	return bundle, nil
}

func unmarshal(data []byte, format Format, out any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), out); err != nil {
			return fmt.Errorf("parse toml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

func flattenMessages(in map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]string, prefix string, in map[string]any) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := in[k].(type) {
		case string:
			out[key] = v
		case nil:
			out[key] = ""
		default:
			if m, ok := asMap(v); ok {
				flattenInto(out, key, m)
				continue
			}
			out[key] = fmt.Sprint(v)
		}
	}
}
