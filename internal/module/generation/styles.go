package generation

import "sort"

// StyleCustom selects a caller-supplied prompt instead of a preset one.
// Custom generations are metered against their own quota table.
const StyleCustom = "custom"

// stylePrompts maps each named style to the prompt sent to the generator.
var stylePrompts = map[string]string{
	"van_gogh":     "Repaint this photo in the style of Vincent van Gogh: thick swirling brushstrokes, vivid blues and yellows.",
	"monet":        "Repaint this photo as a Claude Monet impressionist painting: soft light, broken color, visible dabs of paint.",
	"ukiyo_e":      "Redraw this photo as a Japanese ukiyo-e woodblock print with flat color planes and bold outlines.",
	"watercolor":   "Repaint this photo as a loose watercolor: translucent washes, soft bleeding edges, white paper showing through.",
	"oil_painting": "Repaint this photo as a classical oil painting with rich impasto texture and warm gallery lighting.",
	"pop_art":      "Redraw this photo in pop art style: halftone dots, saturated primary colors, heavy black outlines.",
	"pencil":       "Redraw this photo as a detailed graphite pencil sketch with cross-hatched shading.",
	"cyberpunk":    "Reimagine this photo in a cyberpunk aesthetic: neon glow, rain-slick surfaces, deep violet and cyan tones.",
}

// KnownStyle reports whether the style is a preset or the custom marker.
func KnownStyle(style string) bool {
	if style == StyleCustom {
		return true
	}
	_, ok := stylePrompts[style]
	return ok
}

// PromptFor returns the generator prompt for a style. For the custom style
// the caller-supplied prompt is used as-is.
func PromptFor(style, customPrompt string) string {
	if style == StyleCustom {
		return customPrompt
	}
	return stylePrompts[style]
}

// Styles lists the preset styles plus the custom marker, sorted.
func Styles() []string {
	out := make([]string, 0, len(stylePrompts)+1)
	for name := range stylePrompts {
		out = append(out, name)
	}
	out = append(out, StyleCustom)
	sort.Strings(out)
	return out
}
