package rewrite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	system, user string
	out          string
	err          error
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.out, f.err
}

func TestAssistant_Rewrite(t *testing.T) {
	t.Run("passes style guidance", func(t *testing.T) {
		f := &fakeCompleter{out: "  The VPN drops every hour.  "}
		out, err := NewAssistant(f).Rewrite(context.Background(), " vpn keeps dying ", StyleFormal)
		require.NoError(t, err)
		assert.Equal(t, "The VPN drops every hour.", out)
		assert.Equal(t, "vpn keeps dying", f.user)
		assert.Contains(t, f.system, "professional")
	})

	t.Run("unknown style falls back to clear", func(t *testing.T) {
		f := &fakeCompleter{out: "ok"}
		_, err := NewAssistant(f).Rewrite(context.Background(), "x", Style("pirate"))
		require.NoError(t, err)
		assert.Contains(t, f.system, "clear and well structured")
	})

	t.Run("strips code fences", func(t *testing.T) {
		f := &fakeCompleter{out: "```markdown\n**Printer** jammed\n```"}
		out, err := NewAssistant(f).Rewrite(context.Background(), "printer jam", StyleClear)
		require.NoError(t, err)
		assert.Equal(t, "**Printer** jammed", out)
	})

	t.Run("empty input skips the model", func(t *testing.T) {
		f := &fakeCompleter{err: errors.New("should not be called")}
		out, err := NewAssistant(f).Rewrite(context.Background(), "   ", StyleClear)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Empty(t, f.user)
	})

	t.Run("model failure surfaces", func(t *testing.T) {
		f := &fakeCompleter{err: errors.New("overloaded")}
		_, err := NewAssistant(f).Rewrite(context.Background(), "x", StyleClear)
		assert.ErrorContains(t, err, "overloaded")
	})
}
