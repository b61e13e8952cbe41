package ticketid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func href(id string) string { return "/tickets/" + id }

func TestLinkify(t *testing.T) {
	seq := New("TKT")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare reference",
			in:   "see TKT-12 for details",
			want: "see [TKT-12](/tickets/TKT-12) for details",
		},
		{
			name: "lower case reference keeps its label",
			in:   "dup of tkt-3.",
			want: "dup of [tkt-3](/tickets/TKT-3).",
		},
		{
			name: "already linked",
			in:   "see [TKT-12](/tickets/TKT-12)",
			want: "see [TKT-12](/tickets/TKT-12)",
		},
		{
			name: "link text containing a reference",
			in:   "[about TKT-5](https://example.com) and TKT-6",
			want: "[about TKT-5](https://example.com) and [TKT-6](/tickets/TKT-6)",
		},
		{
			name: "inside inline code",
			in:   "run `close TKT-9`",
			want: "run `close TKT-9`",
		},
		{
			name: "inside a bare url",
			in:   "https://desk.example.com/tickets/TKT-4",
			want: "https://desk.example.com/tickets/TKT-4",
		},
		{
			name: "no references",
			in:   "nothing here",
			want: "nothing here",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seq.Linkify(tt.in, href))
		})
	}
}

func TestFindAll(t *testing.T) {
	seq := New("TKT")
	got := seq.FindAll("TKT-2 blocks tkt-10, also TKT-2 again and TKT-0")
	assert.Equal(t, []string{"TKT-2", "TKT-10"}, got)
}
