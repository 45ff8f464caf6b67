package configutil

import (
	"fmt"
	"sort"
	"strings"
)

// Schema names the keys a provider settings map may carry. Matching is
// case, underscore, and hyphen insensitive, like DecodeSettings.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings reports required keys that are absent or blank and,
// unless the schema allows them, keys the schema does not name.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		known[normalizeKey(k)] = struct{}{}
	}
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = struct{}{}
	}

	present := make(map[string]bool, len(input))
	var unknown []string
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := known[nk]; !ok {
			if !schema.AllowUnknown {
				unknown = append(unknown, k)
			}
			continue
		}
		present[nk] = !blank(v)
	}

	var missing []string
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	var b strings.Builder
	b.WriteString("invalid settings")
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		fmt.Fprintf(&b, "; unknown %s", strings.Join(unknown, ", "))
	}
	return fmt.Errorf("%s", b.String())
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
