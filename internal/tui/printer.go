package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

// Printer writes command output. Styled output uses bordered tables and
// colour; plain output is tab separated so it can be piped into other tools.
type Printer struct {
	w      io.Writer
	styled bool
	styles styles
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer, styled bool) *Printer {
	return &Printer{
		w:      w,
		styled: styled,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Styled reports whether output is decorated.
func (p *Printer) Styled() bool { return p.styled }

// Title prints a heading line.
func (p *Printer) Title(text string) {
	if p.styled {
		fmt.Fprintln(p.w, p.styles.title.Render(text))
		return
	}
	fmt.Fprintln(p.w, text)
}

// Line prints a plain line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a line marked as successful.
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.styled {
		msg = p.styles.success.Render(SymbolCheck + " " + msg)
	}
	fmt.Fprintln(p.w, msg)
}

// Warning prints a line marked as a warning.
func (p *Printer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.styled {
		msg = p.styles.warning.Render(SymbolBullet + " " + msg)
	}
	fmt.Fprintln(p.w, msg)
}

// Category renders an error category name.
func (p *Printer) Category(c retry.ErrorCategory) string {
	if !p.styled {
		return c.String()
	}
	return p.styles.categoryStyle(c).Render(c.String())
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) {
	if !p.styled {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.styles.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			return p.styles.cell
		})
	fmt.Fprintln(p.w, t.String())
}
