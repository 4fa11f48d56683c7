package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPlain(t *testing.T) {
	prev := plain.Load()
	t.Cleanup(func() { SetPlain(prev) })

	SetPlain(true)
	assert.Equal(t, "Deleting /v/._a", Render(&Warning, "Deleting /v/._a"))
}

func TestRenderKeepsText(t *testing.T) {
	prev := plain.Load()
	t.Cleanup(func() { SetPlain(prev) })

	SetPlain(false)
	// lipgloss drops colors when stdout is not a terminal; the text must survive either way.
	assert.Contains(t, Render(&Success, "done"), "done")
}
