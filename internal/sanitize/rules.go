// Package sanitize reduces rendered HTML to content relevant for
// downstream text/SEO analysis, stripping rendering-only and tooling-only
// artifacts while preserving all text and remaining element structure.
package sanitize

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules describes what the sanitizer removes. The zero value removes
// nothing; use DefaultRules for the standard set.
type Rules struct {
	// RemoveElements are element names removed entirely, subtree included.
	RemoveElements []string `yaml:"remove_elements"`

	// StripAttributes are attribute names stripped from every element.
	StripAttributes []string `yaml:"strip_attributes"`

	// StripAttributePrefixes strip every attribute whose name begins with
	// one of these prefixes.
	StripAttributePrefixes []string `yaml:"strip_attribute_prefixes"`
}

// DefaultRules returns the standard rule set: style/script/svg elements
// removed, presentation and tooling attributes stripped.
func DefaultRules() Rules {
	return Rules{
		RemoveElements:         []string{"style", "script", "svg"},
		StripAttributes:        []string{"style", "class", "id", "role"},
		StripAttributePrefixes: []string{"data-", "aria-"},
	}
}

// Merge returns a new rule set with the override's entries added to r.
// Overrides are additive only: they can never re-enable content the base
// rules remove. Names are lowercased; duplicates are dropped.
func (r Rules) Merge(override Rules) Rules {
	return Rules{
		RemoveElements:         mergeLower(r.RemoveElements, override.RemoveElements),
		StripAttributes:        mergeLower(r.StripAttributes, override.StripAttributes),
		StripAttributePrefixes: mergeLower(r.StripAttributePrefixes, override.StripAttributePrefixes),
	}
}

// Validate rejects rule sets that would make the sanitizer a no-op in a
// surprising way, such as blank entries from a malformed override file.
func (r Rules) Validate() error {
	for _, lists := range [][]string{r.RemoveElements, r.StripAttributes, r.StripAttributePrefixes} {
		for _, name := range lists {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("rules contain a blank entry")
			}
		}
	}
	return nil
}

// ParseRules parses a YAML rules document.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func mergeLower(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
