package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pgavlin/wasmir/ir"
	"golang.org/x/term"
)

// NewStyle returns the IR style for output written to f. mode is one of auto, always, or never; auto
// colors output only when f is a terminal.
func NewStyle(mode string, f *os.File) (ir.Style, error) {
	switch mode {
	case "never":
		return ir.PlainStyle{}, nil
	case "auto":
		if !term.IsTerminal(int(f.Fd())) {
			return ir.PlainStyle{}, nil
		}
		return NewColorStyle(lipgloss.NewRenderer(f)), nil
	case "always":
		r := lipgloss.NewRenderer(f)
		r.SetColorProfile(termenv.ANSI256)
		return NewColorStyle(r), nil
	default:
		return nil, fmt.Errorf("unknown color mode %q (expected auto, always, or never)", mode)
	}
}

// ColorStyle renders IR tokens with lipgloss.
type ColorStyle struct {
	keyword, name, literal, comment lipgloss.Style
}

func NewColorStyle(r *lipgloss.Renderer) *ColorStyle {
	return &ColorStyle{
		keyword: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		name:    r.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		literal: r.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		comment: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}
}

func (s *ColorStyle) Keyword(t string) string { return s.keyword.Render(t) }
func (s *ColorStyle) Name(t string) string    { return s.name.Render(t) }
func (s *ColorStyle) Literal(t string) string { return s.literal.Render(t) }
func (s *ColorStyle) Comment(t string) string { return s.comment.Render(t) }
