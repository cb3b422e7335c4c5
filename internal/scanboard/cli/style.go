package cli

import (
	"io"
	"os"

	"github.com/build-flow-labs/scanboard/rating"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleGood    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleCaution = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleBad     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
)

// colorEnabled reports whether w is a terminal.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// styleGrade renders the grade in its color category when color is on.
func styleGrade(color bool, grade rating.Grade, category rating.ColorCategory) string {
	text := string(grade)
	if !color {
		return text
	}
	switch category {
	case rating.ColorGood:
		return styleGood.Render(text)
	case rating.ColorCaution:
		return styleCaution.Render(text)
	case rating.ColorBad:
		return styleBad.Render(text)
	}
	return text
}
