package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Sanitizer applies a fixed rule set to rendered HTML. It is a pure,
// deterministic, side-effect-free transform: same input always yields the
// same output, and applying it twice yields the same result as once.
type Sanitizer struct {
	removeElements map[string]struct{}
	stripAttrs     map[string]struct{}
	stripPrefixes  []string
}

// New creates a Sanitizer from a rule set.
func New(rules Rules) *Sanitizer {
	s := &Sanitizer{
		removeElements: make(map[string]struct{}, len(rules.RemoveElements)),
		stripAttrs:     make(map[string]struct{}, len(rules.StripAttributes)),
		stripPrefixes:  make([]string, 0, len(rules.StripAttributePrefixes)),
	}
	for _, name := range rules.RemoveElements {
		s.removeElements[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range rules.StripAttributes {
		s.stripAttrs[strings.ToLower(name)] = struct{}{}
	}
	for _, prefix := range rules.StripAttributePrefixes {
		s.stripPrefixes = append(s.stripPrefixes, strings.ToLower(prefix))
	}
	return s
}

// Default returns a Sanitizer with the standard rule set.
func Default() *Sanitizer {
	return New(DefaultRules())
}

// Clean parses the document, removes the configured elements, strips the
// configured attributes from everything that remains, and re-serializes.
// Text content and surviving element structure are never touched.
//
// If the input cannot be parsed at all it is returned unchanged; the
// parser is lenient, so this only happens on pathological input.
func (s *Sanitizer) Clean(in string) string {
	doc, err := html.Parse(strings.NewReader(in))
	if err != nil {
		return in
	}

	s.scrub(doc)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return in
	}
	return b.String()
}

// scrub walks the tree depth-first, pruning removable elements and
// filtering attributes in place.
func (s *Sanitizer) scrub(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if _, remove := s.removeElements[c.Data]; remove {
				n.RemoveChild(c)
				c = next
				continue
			}
			c.Attr = s.filterAttrs(c.Attr)
		}
		s.scrub(c)
		c = next
	}
}

func (s *Sanitizer) filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if s.dropAttr(strings.ToLower(a.Key)) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func (s *Sanitizer) dropAttr(key string) bool {
	if _, ok := s.stripAttrs[key]; ok {
		return true
	}
	for _, prefix := range s.stripPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
