// Package report prints run progress and results to the console.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette used by the printer.
var (
	ColorHeader  = lipgloss.Color("#2CD7C7")
	ColorSuccess = lipgloss.Color("#2ECC71")
	ColorInfo    = lipgloss.Color("#3498DB")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorResult  = lipgloss.Color("#C061CB")
)

// HeaderWidth is the length of the rule printed around headers.
const HeaderWidth = 50

// Printer writes styled lines to w. Styling is applied only when w is a
// terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// New returns a printer for w, enabling color when w is a TTY.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

// Plain returns a printer that never styles its output.
func Plain(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) paint(c lipgloss.Color, bold bool, s string) string {
	if !p.color || c == "" {
		return s
	}
	return lipgloss.NewStyle().Foreground(c).Bold(bold).Render(s)
}

// Header prints text between two rules of '='.
func (p *Printer) Header(text string) { p.Rule(text, "=", ColorHeader) }

// Rule prints text between two rules made of char. An empty color prints
// unstyled.
func (p *Printer) Rule(text, char string, c lipgloss.Color) {
	line := strings.Repeat(char, HeaderWidth)
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.paint(c, false, line))
	fmt.Fprintln(p.w, p.paint(c, true, text))
	fmt.Fprintln(p.w, p.paint(c, false, line))
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(ColorSuccess, false, fmt.Sprintf(format, args...)))
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(ColorInfo, false, fmt.Sprintf(format, args...)))
}

func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(ColorWarning, false, fmt.Sprintf(format, args...)))
}

func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(ColorError, false, fmt.Sprintf(format, args...)))
}

// Result prints "label: value" with the label highlighted.
func (p *Printer) Result(label string, value any) {
	fmt.Fprintf(p.w, "%s %v\n", p.paint(ColorResult, false, label+":"), value)
}

// Table prints rows under cols, padding every column to its widest cell.
// Cells past the number of columns are ignored.
func (p *Printer) Table(title string, cols []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.paint(ColorHeader, false, title+":"))
	}
	widths := make([]int, len(cols))
	for j, c := range cols {
		widths[j] = lipgloss.Width(c)
	}
	for _, r := range rows {
		for j := 0; j < len(cols) && j < len(r); j++ {
			widths[j] = max(widths[j], lipgloss.Width(r[j]))
		}
	}

	fmt.Fprintln(p.w, p.paint(ColorSuccess, false, joinPadded(cols, widths)))
	seps := make([]string, len(widths))
	for j, w := range widths {
		seps[j] = strings.Repeat("-", w)
	}
	fmt.Fprintln(p.w, p.paint(ColorSuccess, false, strings.Join(seps, "-+-")))
	for _, r := range rows {
		fmt.Fprintln(p.w, joinPadded(r, widths))
	}
}

func joinPadded(cells []string, widths []int) string {
	out := make([]string, len(widths))
	for j, w := range widths {
		c := ""
		if j < len(cells) {
			c = cells[j]
		}
		out[j] = c + strings.Repeat(" ", max(w-lipgloss.Width(c), 0))
	}
	return strings.Join(out, " | ")
}
