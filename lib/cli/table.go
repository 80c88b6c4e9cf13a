// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// Theme colors command output. Colors use ANSI 256-color codes and are
// dropped entirely when the output is not a terminal.
type Theme struct {
	Header    lipgloss.Color
	Faint     lipgloss.Color
	Queued    lipgloss.Color
	Running   lipgloss.Color
	Completed lipgloss.Color
	Failed    lipgloss.Color
	Cancelled lipgloss.Color
}

// DefaultTheme is used by every command.
var DefaultTheme = Theme{
	Header:    lipgloss.Color("252"),
	Faint:     lipgloss.Color("243"),
	Queued:    lipgloss.Color("75"),
	Running:   lipgloss.Color("220"),
	Completed: lipgloss.Color("78"),
	Failed:    lipgloss.Color("203"),
	Cancelled: lipgloss.Color("246"),
}

// StatusColor returns the color for a job status name.
func (theme Theme) StatusColor(status string) lipgloss.Color {
	switch status {
	case "queued":
		return theme.Queued
	case "running":
		return theme.Running
	case "completed":
		return theme.Completed
	case "failed":
		return theme.Failed
	case "cancelled":
		return theme.Cancelled
	default:
		return theme.Faint
	}
}

// Table accumulates rows and renders them as aligned columns. A column
// named "STATUS" is colored by [Theme.StatusColor].
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable starts a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row appends a row. Cells beyond the header count are ignored.
func (t *Table) Row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w, styled for w's color capabilities.
func (t *Table) Render(w io.Writer) error {
	renderer := lipgloss.NewRenderer(w)
	header := renderer.NewStyle().Bold(true).Foreground(DefaultTheme.Header).PaddingRight(3)
	cell := renderer.NewStyle().PaddingRight(3)

	statusColumn := -1
	for i, name := range t.headers {
		if name == "STATUS" {
			statusColumn = i
		}
	}

	rendered := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(t.headers...).
		StyleFunc(func(row, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if column == statusColumn && row >= 0 && row < len(t.rows) && column < len(t.rows[row]) {
				return cell.Foreground(DefaultTheme.StatusColor(t.rows[row][column]))
			}
			return cell
		})
	for _, row := range t.rows {
		if len(row) > len(t.headers) {
			row = row[:len(t.headers)]
		}
		rendered.Row(row...)
	}
	_, err := fmt.Fprintln(w, rendered.String())
	return err
}

// Ago formats a timestamp relative to now ("3 minutes ago"). The zero
// time renders as "-".
func Ago(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return humanize.Time(at)
}

// Bytes formats a byte count for humans ("1.2 MB").
func Bytes(size int64) string {
	if size < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}

// Elapsed formats a duration truncated to whole seconds.
func Elapsed(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
