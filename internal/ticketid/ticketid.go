// Package ticketid implements the human-readable ticket identifier format
// PREFIX-<n> and the max-scan sequence used to allocate new identifiers.
package ticketid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "TKT"

// Sequence knows how to parse, format and advance identifiers for one prefix.
type Sequence struct {
	prefix string
	exact  *regexp.Regexp
	inText *regexp.Regexp
}

// New builds a Sequence for prefix. The prefix is upper-cased; an empty prefix
// falls back to DefaultPrefix.
func New(prefix string) *Sequence {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	quoted := regexp.QuoteMeta(prefix)
	return &Sequence{
		prefix: prefix,
		exact:  regexp.MustCompile(`(?i)^` + quoted + `-(\d+)$`),
		inText: regexp.MustCompile(`(?i)\b` + quoted + `-(\d+)\b`),
	}
}

// Prefix returns the normalized prefix.
func (s *Sequence) Prefix() string {
	return s.prefix
}

// Format renders the identifier for suffix n.
func (s *Sequence) Format(n int) string {
	return fmt.Sprintf("%s-%d", s.prefix, n)
}

// Parse extracts the numeric suffix of id. Values that do not match the
// pattern, are zero, or overflow int are rejected.
func (s *Sequence) Parse(id string) (int, bool) {
	m := s.exact.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Next returns one more than the highest valid suffix among ids, or 1 when
// none of them parse.
func (s *Sequence) Next(ids []string) int {
	highest := 0
	for _, id := range ids {
		if n, ok := s.Parse(id); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Range formats count consecutive identifiers starting at start.
func (s *Sequence) Range(start, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = s.Format(start + i)
	}
	return out
}
