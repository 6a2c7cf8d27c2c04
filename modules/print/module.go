// Package print provides the "text" report sink: a human readable summary of
// a validation pass styled for the terminal.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
)

// SinkName is the name the sink is registered under.
const SinkName = "text"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink(SinkName, func(opts registry.SinkOptions) (registry.Sink, error) {
		return New(opts.Out), nil
	})
}

// Sink writes styled reports to a writer. Colors are only emitted when the
// writer is a terminal.
type Sink struct {
	out    io.Writer
	styles styles
}

type styles struct {
	title, pass, fail, warn, muted, label, stack lipgloss.Style
}

// New creates a text sink writing to out, or stdout if out is nil.
func New(out io.Writer) *Sink {
	if out == nil {
		out = os.Stdout
	}
	re := lipgloss.NewRenderer(out)
	return &Sink{
		out: out,
		styles: styles{
			title: re.NewStyle().Bold(true),
			pass:  re.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
			fail:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5534B")),
			warn:  re.NewStyle().Foreground(lipgloss.Color("#D29922")),
			muted: re.NewStyle().Faint(true),
			label: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5534B")),
			stack: re.NewStyle().PaddingLeft(6).Faint(true),
		},
	}
}

// Name implements registry.Sink.
func (s *Sink) Name() string { return SinkName }

// Publish implements registry.Sink.
func (s *Sink) Publish(_ context.Context, report *engine.Report) error {
	_, err := io.WriteString(s.out, s.Render(report))
	return err
}

// Render formats report.
func (s *Sink) Render(report *engine.Report) string {
	st := s.styles
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", st.title.Render("Route "+report.Route), st.muted.Render("run "+report.RunID))
	if report.Skipped != "" {
		fmt.Fprintf(&b, "  %s\n", st.warn.Render("skipped: "+report.Skipped))
		return b.String()
	}
	for _, in := range report.Interrupts {
		fmt.Fprintf(&b, "  %s\n", st.warn.Render(fmt.Sprintf("render interrupted in %s stage: %s", in.Stage, in.Reason)))
	}

	for _, task := range report.Tasks {
		nav := task.Target
		if len(task.Parents) > 0 {
			nav = fmt.Sprintf("%s -> %s", task.Parents[len(task.Parents)-1], task.Target)
		}
		switch task.Status {
		case engine.StatusPassed:
			fmt.Fprintf(&b, "  %s %s\n", st.pass.Render("PASS"), nav)
		case engine.StatusViolations:
			fmt.Fprintf(&b, "  %s %s\n", st.fail.Render("FAIL"), nav)
		case engine.StatusCancelled:
			fmt.Fprintf(&b, "  %s %s\n", st.warn.Render("SKIP"), nav)
		default:
			fmt.Fprintf(&b, "  %s %s %s\n", st.fail.Render("ERR "), nav, st.muted.Render(task.Error))
		}
		for _, v := range task.Violations {
			fmt.Fprintf(&b, "    %s %s\n", st.label.Render(v.Label+":"), v.Message)
			if v.Site != "" {
				fmt.Fprintf(&b, "%s\n", st.stack.Render("at "+v.Site))
			}
			for i := len(v.Stack) - 1; i >= 0; i-- {
				fmt.Fprintf(&b, "%s\n", st.stack.Render("in "+v.Stack[i]))
			}
		}
	}

	summary := fmt.Sprintf("%d navigation(s), %d violation(s)", len(report.Tasks), report.ViolationCount())
	if report.Passed() {
		fmt.Fprintf(&b, "%s\n", st.pass.Render(summary))
	} else {
		fmt.Fprintf(&b, "%s\n", st.fail.Render(summary))
	}
	return b.String()
}
