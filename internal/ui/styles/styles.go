// Package styles holds the colours and text styles used by the CLI reports.
package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	Gray          = lipgloss.Color("#3e3e3e")
	White         = lipgloss.Color("#cccccc")
	Whiter        = lipgloss.Color("#aaaaaa")
	Red           = lipgloss.Color("#B8383B")
	ColourStrange = lipgloss.Color("#cf6a32")
	ColourGenuine = lipgloss.Color("#4d7455")

	TableHeading       = lipgloss.NewStyle().Foreground(ColourStrange).Bold(true).PaddingRight(2)
	TableRowValuesEven = lipgloss.NewStyle().Foreground(White).PaddingRight(2)
	TableRowValuesOdd  = lipgloss.NewStyle().Foreground(Whiter).PaddingRight(2)

	Title   = lipgloss.NewStyle().Foreground(ColourStrange).Bold(true)
	Good    = lipgloss.NewStyle().Foreground(ColourGenuine).Bold(true)
	Bad     = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Muted   = lipgloss.NewStyle().Foreground(Gray)
	NoStyle = lipgloss.NewStyle()
)
