// Package markdown renders ticket descriptions to sanitized HTML with ticket
// references turned into links.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/example/helpdesk/internal/ticketid"
)

// Renderer converts markdown to safe HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	seq    *ticketid.Sequence
	href   func(id string) string
}

// NewRenderer builds a renderer. Ticket references matching seq are linked to
// baseURL/tickets/<id>.
func NewRenderer(seq *ticketid.Sequence, baseURL string) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &Renderer{
		md:     md,
		policy: policy,
		seq:    seq,
		href:   func(id string) string { return baseURL + "/tickets/" + id },
	}
}

// ToHTML renders text. Output is always sanitized.
func (r *Renderer) ToHTML(text string) (string, error) {
	if r.seq != nil {
		text = r.seq.Linkify(text, r.href)
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
