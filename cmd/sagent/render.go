package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/ShayCichocki/sagent/internal/saga"
	"github.com/ShayCichocki/sagent/internal/state"
	"github.com/ShayCichocki/sagent/pkg/models"
)

// eventRenderer prints saga events as they arrive.
type eventRenderer struct {
	w    io.Writer
	ok   *color.Color
	fail *color.Color
	warn *color.Color
	dim  *color.Color
	bold *color.Color
}

func newEventRenderer(w io.Writer) *eventRenderer {
	return &eventRenderer{
		w:    w,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
}

// Emit implements saga.EventSink.
func (r *eventRenderer) Emit(e saga.Event) {
	switch e.Type {
	case saga.EventRunStarted:
		fmt.Fprintf(r.w, "%s run %s\n", r.bold.Sprint("▶"), r.dim.Sprint(e.RunID))
	case saga.EventTaskStarted:
		fmt.Fprintf(r.w, "  %s %s\n", r.dim.Sprint("→"), e.Task)
	case saga.EventTaskSucceeded:
		line := fmt.Sprintf("  %s %s", r.ok.Sprint("✓"), e.Task)
		if res := oneLine(state.FormatResult(e.Result)); res != "" {
			line += "  " + r.dim.Sprint(res)
		}
		fmt.Fprintln(r.w, line)
	case saga.EventTaskFailed:
		fmt.Fprintf(r.w, "  %s %s: %v\n", r.fail.Sprint("✗"), e.Task, unwrapTask(e.Error))
	case saga.EventCompensationStarted:
		fmt.Fprintf(r.w, "%s compensating completed tasks\n", r.warn.Sprint("↺"))
	case saga.EventCompensationStep, saga.EventTaskRestored:
		r.compensation(e)
	case saga.EventCompensationDone:
		fmt.Fprintf(r.w, "%s compensation finished\n", r.warn.Sprint("↺"))
	case saga.EventRunCompleted:
		fmt.Fprintf(r.w, "%s run completed\n", r.ok.Sprint("✓"))
	case saga.EventRunFailed:
		fmt.Fprintf(r.w, "%s run failed\n", r.fail.Sprint("✗"))
	}
}

func (r *eventRenderer) compensation(e saga.Event) {
	verb := "rolled back"
	indent := "  "
	if e.Type == saga.EventTaskRestored {
		verb = "restored"
		indent = ""
	}

	switch e.Outcome {
	case saga.CompensationSucceeded:
		fmt.Fprintf(r.w, "%s%s %s %s\n", indent, r.warn.Sprint("↺"), e.Task, verb)
	case saga.CompensationSkipped:
		fmt.Fprintf(r.w, "%s%s %s has no rollback\n", indent, r.dim.Sprint("-"), e.Task)
	default:
		fmt.Fprintf(r.w, "%s%s %s: %v\n", indent, r.fail.Sprint("✗"), e.Task, e.Error)
	}
}

// unwrapTask drops the "task X failed" prefix the renderer already shows.
func unwrapTask(err error) error {
	if te, ok := err.(*saga.TaskError); ok {
		return te.Err
	}
	return err
}

// oneLine flattens s and cuts it to 80 characters.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > 80 {
		return string([]rune(s)[:77]) + "..."
	}
	return s
}

var (
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func styleStatus(s string) string {
	var fg lipgloss.Color
	switch s {
	case string(models.RunStatusCompleted), string(models.StepOutcomeSucceeded):
		fg = "34"
	// Run and step failures share the "failed" value.
	case string(models.RunStatusFailed):
		fg = "196"
	case string(models.StepOutcomeCompensated):
		fg = "214"
	case string(models.StepOutcomeNoRollback):
		fg = "244"
	default:
		return s
	}
	return lipgloss.NewStyle().Foreground(fg).Render(s)
}

// newTable returns a table in the shared style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderSummary prints the one-box summary shown after a run.
func renderSummary(w io.Writer, sagaName string, report *saga.Report) {
	rows := [][2]string{
		{"saga", sagaName},
		{"run", report.RunID},
		{"status", styleStatus(string(report.Status))},
		{"rollback", fmt.Sprintf("%t", report.WithRollback)},
		{"completed", fmt.Sprintf("%d/%d", len(report.Completed), len(report.Order))},
		{"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()},
	}
	if report.Failed != "" {
		rows = append(rows, [2]string{"failed", report.Failed})
	}
	if n := countCompensations(report, saga.CompensationFailed); n > 0 {
		rows = append(rows, [2]string{"rollback errors", fmt.Sprintf("%d", n)})
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-16s", row[0])))
		b.WriteString(row[1])
	}
	fmt.Fprintln(w, summaryStyle.Render(b.String()))
}

func countCompensations(report *saga.Report, status saga.CompensationStatus) int {
	n := 0
	for _, c := range report.Compensations {
		if c.Status == status {
			n++
		}
	}
	return n
}

// renderIntra prints each task with its stored result.
func renderIntra(w io.Writer, details []saga.TaskDetail) {
	t := newTable("Task", "Executed", "Result")
	for _, d := range details {
		executed := "no"
		if d.Executed {
			executed = "yes"
		}
		t.Row(d.Name, executed, oneLine(state.FormatResult(d.Result)))
	}
	fmt.Fprintln(w, "Intra-task details")
	fmt.Fprintln(w, t.Render())
}

// renderInter prints the dependency list of every task.
func renderInter(w io.Writer, deps []saga.Dependency) {
	t := newTable("Task", "Depends on")
	for _, d := range deps {
		on := strings.Join(d.DependsOn, ", ")
		if on == "" {
			on = "-"
		}
		t.Row(d.Task, on)
	}
	fmt.Fprintln(w, "Inter-task dependencies")
	fmt.Fprintln(w, t.Render())
}
