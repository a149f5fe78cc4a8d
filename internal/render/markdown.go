package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders notes and digests for the terminal, rebuilding its
// renderer only when the wrap width changes.
type Markdown struct {
	width    int
	renderer *glamour.TermRenderer
}

// Render returns markdown as ANSI text wrapped at width. On renderer
// failure the input is returned unchanged.
func (r *Markdown) Render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
