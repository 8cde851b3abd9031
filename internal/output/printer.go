// Package output renders approval chains and command results for the terminal.
//
// The [Printer] maps each [approval.Semantic] to a lipgloss style and an icon.
// The projector never deals with colors; this package is the only place that
// does.
//
// Key types:
//   - [Printer] - Writes styled output to an io.Writer
//   - [SubjectRow] - One line of a subject listing
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"clubflow/internal/approval"
)

// Icons shown for each stage semantic.
var icons = map[approval.Semantic]string{
	approval.SemanticComplete:   "✓",
	approval.SemanticActive:     "●",
	approval.SemanticFailed:     "✗",
	approval.SemanticSkipped:    "-",
	approval.SemanticNotStarted: "○",
}

// colors are ANSI palette indexes per semantic.
var colors = map[approval.Semantic]string{
	approval.SemanticComplete:   "10",
	approval.SemanticActive:     "12",
	approval.SemanticFailed:     "9",
	approval.SemanticSkipped:    "8",
	approval.SemanticNotStarted: "7",
}

// SubjectRow is one line of a subject listing.
type SubjectRow struct {
	ID     string
	Title  string
	Club   string
	Status string
	Stage  string
}

// Printer writes styled output.
//
// Create with [NewPrinter] for stdout or [NewPrinterWithWriter] for tests.
// Styles are bound to the writer, so a non-terminal writer gets plain text.
type Printer struct {
	out io.Writer

	semantic map[approval.Semantic]lipgloss.Style
	title    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
}

// NewPrinter creates a [Printer] writing to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a [Printer] writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)

	semantic := make(map[approval.Semantic]lipgloss.Style, len(colors))
	for s, c := range colors {
		semantic[s] = r.NewStyle().Foreground(lipgloss.Color(c))
	}
	semantic[approval.SemanticActive] = semantic[approval.SemanticActive].Bold(true)
	semantic[approval.SemanticSkipped] = semantic[approval.SemanticSkipped].Faint(true)

	return &Printer{
		out:      w,
		semantic: semantic,
		title:    r.NewStyle().Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		success:  r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		failure:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Stepper renders a projected chain. Compact mode puts every stage on one line.
func (p *Printer) Stepper(title string, views []approval.StageView, compact bool) {
	if title != "" {
		p.printf("%s\n", p.title.Render(title))
	}

	if compact {
		parts := make([]string, len(views))
		for i, v := range views {
			parts[i] = p.semantic[v.Semantic].Render(icons[v.Semantic] + " " + v.Name)
		}
		p.printf("%s\n", strings.Join(parts, p.muted.Render(" → ")))
		return
	}

	width := 0
	for _, v := range views {
		width = max(width, lipgloss.Width(v.Name))
	}
	for _, v := range views {
		style := p.semantic[v.Semantic]
		name := v.Name + strings.Repeat(" ", width-lipgloss.Width(v.Name))
		p.printf("  %s %d. %s  %s\n", style.Render(icons[v.Semantic]), v.Index+1, name, style.Render(v.Label))
	}
}

// Progress renders a completed/total summary line.
func (p *Printer) Progress(completed, total int) {
	p.printf("%s\n", p.muted.Render(fmt.Sprintf("%d of %d stages approved", completed, total)))
}

// History renders the decisions recorded so far.
func (p *Printer) History(def approval.StageDefinition, history []approval.StageRecord) {
	p.printf("%s\n", p.title.Render("History"))
	if len(history) == 0 {
		p.printf("  %s\n", p.muted.Render("no decisions yet"))
		return
	}

	for _, r := range history {
		semantic := approval.SemanticComplete
		if r.Outcome == approval.OutcomeRejected {
			semantic = approval.SemanticFailed
		}

		when := "-"
		if !r.Timestamp.IsZero() {
			when = r.Timestamp.Local().Format(time.DateTime)
		}
		approver := r.ApproverName
		if approver == "" {
			approver = "unknown"
		}

		p.printf("  %s %-16s %s by %s %s\n",
			p.semantic[semantic].Render(icons[semantic]),
			def.Name(r.StageIndex),
			r.Outcome,
			approver,
			p.muted.Render("("+when+")"),
		)
		if r.Comments != "" {
			p.printf("      %s\n", p.muted.Render("“"+r.Comments+"”"))
		}
	}
}

// StageList renders a kind's chain with the approver role of each stage.
func (p *Printer) StageList(title string, def approval.StageDefinition, role func(i int) string) {
	p.printf("%s\n", p.title.Render(title))
	for i, name := range def.Names() {
		r := role(i)
		if r == "" {
			p.printf("  %d. %s\n", i+1, name)
			continue
		}
		p.printf("  %d. %-16s %s\n", i+1, name, p.muted.Render(r))
	}
}

// SubjectList renders one row per subject.
func (p *Printer) SubjectList(title string, rows []SubjectRow) {
	p.printf("%s\n", p.title.Render(title))
	if len(rows) == 0 {
		p.printf("  %s\n", p.muted.Render("nothing to show"))
		return
	}
	for _, r := range rows {
		p.printf("  #%-5s %-32s %-20s %-9s %s\n", r.ID, truncate(r.Title, 32), truncate(r.Club, 20), r.Status, p.muted.Render(r.Stage))
	}
}

// BatchProgress renders the position within a batch.
func (p *Printer) BatchProgress(index, total int, id string) {
	p.printf("%s\n", p.muted.Render(fmt.Sprintf("[%d/%d] %s", index, total, id)))
}

// Success renders a success message.
func (p *Printer) Success(msg string) {
	p.printf("%s %s\n", p.success.Render("✓"), msg)
}

// Warning renders a warning message.
func (p *Printer) Warning(msg string) {
	p.printf("%s %s\n", p.warning.Render("!"), msg)
}

// Error renders an error message.
func (p *Printer) Error(msg string) {
	p.printf("%s %s\n", p.failure.Render("✗"), msg)
}

// Mismatch reports that the backend settled on a different state than the
// optimistic overlay.
func (p *Printer) Mismatch(key string, expected, actual approval.State) {
	p.Warning(fmt.Sprintf("%s: server state differs from expected (expected %s at stage %d, got %s at stage %d)",
		key, expected.Status, expected.CurrentStage+1, actual.Status, actual.CurrentStage+1))
}

// Text writes a plain line.
func (p *Printer) Text(msg string) {
	p.printf("%s\n", msg)
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
