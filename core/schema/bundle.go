package schema

import "maps"

// Bundle holds localized messages keyed by locale, then by message key.
type Bundle map[string]map[string]string

// Merge copies other into b, shallow-merging per locale. Keys of other win.
func (b Bundle) Merge(other Bundle) Bundle {
	if b == nil {
		b = make(Bundle, len(other))
	}
	for locale, messages := range other {
		dst, ok := b[locale]
		if !ok {
			dst = make(map[string]string, len(messages))
			b[locale] = dst
		}
		maps.Copy(dst, messages)
	}
	return b
}

// Locales returns the locales present in the bundle, in no particular order.
func (b Bundle) Locales() []string {
	out := make([]string, 0, len(b))
	for locale := range b {
		out = append(out, locale)
	}
	return out
}

// Clone returns a deep copy of the bundle.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for locale, messages := range b {
		out[locale] = maps.Clone(messages)
	}
	return out
}
