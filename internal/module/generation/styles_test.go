package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownStyle(t *testing.T) {
	assert.True(t, KnownStyle("van_gogh"))
	assert.True(t, KnownStyle(StyleCustom))
	assert.False(t, KnownStyle("crayon"))
	assert.False(t, KnownStyle(""))
}

func TestPromptFor(t *testing.T) {
	assert.Contains(t, PromptFor("van_gogh", ""), "van Gogh")
	assert.Equal(t, "my prompt", PromptFor(StyleCustom, "my prompt"))
	assert.Empty(t, PromptFor(StyleCustom, ""))
}

func TestStylesSortedAndIncludesCustom(t *testing.T) {
	styles := Styles()
	assert.Contains(t, styles, StyleCustom)
	assert.Contains(t, styles, "van_gogh")
	assert.IsIncreasing(t, styles)
}
