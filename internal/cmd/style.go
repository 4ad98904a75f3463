package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	statusStyles = map[models.StepStatus]lipgloss.Style{
		models.StatusOk:       lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		models.StatusDegraded: lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true),
		models.StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
	}
	statusMarks = map[models.StepStatus]string{
		models.StatusOk:       "✓",
		models.StatusDegraded: "!",
		models.StatusFailed:   "✗",
	}
)

// printer writes human-oriented progress. Styling is applied only when the
// writer is a terminal.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{out: w, color: color}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) status(s models.StepStatus) string {
	mark, ok := statusMarks[s]
	if !ok {
		mark = "?"
	}
	return p.style(statusStyles[s], mark+" "+string(s))
}

// Title prints a bold heading line.
func (p *printer) Title(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.style(titleStyle, fmt.Sprintf(format, args...)))
}

// Step prints one finished step. It is passed to the service as an observer.
func (p *printer) Step(r models.StepResult) {
	line := fmt.Sprintf("  %s  %-18s %s", p.status(r.Status), r.Step, r.Elapsed.Round(time.Millisecond))
	if r.Candidate != "" {
		line += p.style(faintStyle, " via "+r.Candidate)
	}
	fmt.Fprintln(p.out, line)
	if r.Diagnostic != "" {
		fmt.Fprintln(p.out, "      "+p.style(faintStyle, r.Diagnostic))
	}
}

// Summary prints the outcome of a whole run.
func (p *printer) Summary(res models.PipelineResult) {
	fmt.Fprintf(p.out, "%s %s in %s\n", p.status(res.Status), res.ID, res.Metadata.Elapsed.Round(time.Millisecond))
	if len(res.Metadata.ModelsUsed) > 0 {
		fmt.Fprintln(p.out, p.style(faintStyle, "  models: "+strings.Join(res.Metadata.ModelsUsed, ", ")))
	}
	if res.Metadata.Device != nil {
		fmt.Fprintln(p.out, p.style(faintStyle, "  device: "+res.Metadata.Device.String()))
	}
	if res.Metadata.Truncated {
		fmt.Fprintln(p.out, p.style(statusStyles[models.StatusDegraded], "  wall-clock budget exceeded, remaining steps skipped"))
	}
	if res.Metadata.Location != "" {
		fmt.Fprintln(p.out, p.style(faintStyle, "  stored at "+res.Metadata.Location))
	}
}

// Table prints rows under a styled header with columns padded to the widest cell.
func (p *printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
				continue
			}
			parts[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		return strings.Join(parts, "  ")
	}

	fmt.Fprintln(p.out, p.style(headerStyle, pad(headers)))
	for _, row := range rows {
		fmt.Fprintln(p.out, pad(row))
	}
}
