package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for the console summary.
type ColorScheme struct {
	Pass      *color.Color
	Fail      *color.Color
	Title     *color.Color
	Dim       *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme. Colors are forced
// on, so the caller decides whether the target supports them.
func DefaultColorScheme() *ColorScheme {
	scheme := &ColorScheme{
		Pass:      color.New(color.FgGreen, color.Bold),
		Fail:      color.New(color.FgRed, color.Bold),
		Title:     color.New(color.FgCyan, color.Bold),
		Dim:       color.New(color.Faint),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Pass, s.Fail, s.Title, s.Dim, s.Highlight}
}
