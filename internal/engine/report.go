package engine

import (
	"time"

	"github.com/specialistvlad/stagecheck/internal/validation"
)

// Task statuses.
const (
	StatusPassed     = "passed"
	StatusViolations = "violations"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Report is the result of one validation pass, shaped for report sinks.
type Report struct {
	RunID                      string        `json:"run_id" yaml:"run_id"`
	Route                      string        `json:"route" yaml:"route"`
	Files                      []string      `json:"files,omitempty" yaml:"files,omitempty"`
	StartedAt                  time.Time     `json:"started_at" yaml:"started_at"`
	Duration                   time.Duration `json:"duration_ns" yaml:"duration"`
	Attempts                   int           `json:"render_attempts" yaml:"render_attempts"`
	Interrupts                 []Interrupt   `json:"interrupts,omitempty" yaml:"interrupts,omitempty"`
	SegmentsWithInstantConfigs []string      `json:"segments_with_instant_configs,omitempty" yaml:"segments_with_instant_configs,omitempty"`
	PageAllowedToBlock         bool          `json:"page_allowed_to_block" yaml:"page_allowed_to_block"`
	Skipped                    string        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Tasks                      []TaskReport  `json:"tasks" yaml:"tasks"`

	Outcome *validation.Outcome `json:"-" yaml:"-"`
}

// TaskReport is the result of one navigation.
type TaskReport struct {
	Target     string      `json:"target" yaml:"target"`
	Parents    []string    `json:"parents" yaml:"parents"`
	Status     string      `json:"status" yaml:"status"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// Violation is a reported blocking-navigation error.
type Violation struct {
	Label       string   `json:"label" yaml:"label"`
	Message     string   `json:"message" yaml:"message"`
	Site        string   `json:"site,omitempty" yaml:"site,omitempty"`
	Environment string   `json:"environment,omitempty" yaml:"environment,omitempty"`
	Stack       []string `json:"stack,omitempty" yaml:"stack,omitempty"`
	HoleKind    string   `json:"hole_kind" yaml:"hole_kind"`
}

// Passed reports whether every navigation was validated without violations.
func (r *Report) Passed() bool {
	for _, t := range r.Tasks {
		if t.Status != StatusPassed {
			return false
		}
	}
	return true
}

// ViolationCount counts violations across tasks.
func (r *Report) ViolationCount() int {
	n := 0
	for _, t := range r.Tasks {
		n += len(t.Violations)
	}
	return n
}

func (r *Report) setOutcome(o *validation.Outcome) {
	r.Outcome = o
	r.Tasks = make([]TaskReport, 0, len(o.Tasks))
	for _, t := range o.Tasks {
		tr := TaskReport{Target: t.Task.Target.String(), Status: StatusPassed}
		for _, p := range t.Task.Parents {
			tr.Parents = append(tr.Parents, p.String())
		}
		switch {
		case t.Cancelled:
			tr.Status = StatusCancelled
		case t.Err != nil:
			tr.Status = StatusFailed
		case len(t.Errors) > 0:
			tr.Status = StatusViolations
		}
		if t.Err != nil {
			tr.Error = t.Err.Error()
		}
		for _, e := range t.Errors {
			tr.Violations = append(tr.Violations, Violation{
				Label:       e.Label,
				Message:     e.Message,
				Site:        e.Site,
				Environment: e.Environment,
				Stack:       e.Stack,
				HoleKind:    e.HoleKind.String(),
			})
		}
		r.Tasks = append(r.Tasks, tr)
	}
}
