// Package ui renders the plain terminal reports printed by the CLI commands.
package ui

import (
	"github.com/apexstats/apex-tracker/internal/ui/styles"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
)

func newUnstyledTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderHeader(true).
		Headers(headers...)
}

// Table renders rows under headers with alternating row colours.
func Table(headers []string, rows [][]string) string {
	return newUnstyledTable(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeading
			case row%2 == 0:
				return styles.TableRowValuesEven
			default:
				return styles.TableRowValuesOdd
			}
		}).
		Render()
}

// Title renders a report heading.
func Title(value string) string {
	return styles.Title.Render(value)
}

// Flag renders a boolean as a coloured yes/no.
func Flag(value bool) string {
	if value {
		return styles.Good.Render("yes")
	}

	return styles.Muted.Render("no")
}

// Error highlights a value that needs attention.
func Error(value string) string {
	return styles.Bad.Render(value)
}
