package ticketid

import (
	"regexp"
	"strings"
)

// protected matches spans where a reference must be left alone: markdown
// links and images, inline code, autolinks and bare URLs.
var protected = regexp.MustCompile("!?\\[[^\\]]*\\]\\([^)]*\\)|`[^`]*`|<[^>\\s]+>|https?://[^\\s)]+")

type span struct{ start, end int }

// FindAll returns the canonical identifiers referenced in text, in order of
// appearance, without duplicates.
func (s *Sequence) FindAll(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.inText.FindAllStringSubmatchIndex(text, -1) {
		id, ok := s.canonical(text[m[0]:m[1]])
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Linkify rewrites bare identifier references in markdown text into links
// pointing at href(id). References already inside a link, inline code or URL
// are not touched.
func (s *Sequence) Linkify(text string, href func(id string) string) string {
	matches := s.inText.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	skip := protectedSpans(text)

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if insideAny(skip, m[0], m[1]) {
			continue
		}
		label := text[m[0]:m[1]]
		id, ok := s.canonical(label)
		if !ok {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString("[")
		b.WriteString(label)
		b.WriteString("](")
		b.WriteString(href(id))
		b.WriteString(")")
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func (s *Sequence) canonical(ref string) (string, bool) {
	n, ok := s.Parse(ref)
	if !ok {
		return "", false
	}
	return s.Format(n), true
}

func protectedSpans(text string) []span {
	idx := protected.FindAllStringIndex(text, -1)
	out := make([]span, 0, len(idx))
	for _, m := range idx {
		out = append(out, span{start: m[0], end: m[1]})
	}
	return out
}

func insideAny(spans []span, start, end int) bool {
	for _, sp := range spans {
		if sp.start >= end {
			return false
		}
		if start >= sp.start && end <= sp.end {
			return true
		}
	}
	return false
}
