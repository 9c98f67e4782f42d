// Package macro executes a plan's steps strictly sequentially, aggregating
// per-step results and stopping on the first failure. Retry, if any, belongs
// to the caller one level up.
package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docfold/docfold-agent/internal/plan"
)

// RunState is the runner's state machine:
// Pending -> Running(step i) -> {Running(step i+1) | Failed | Completed}.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// StepOutput is what a capability hands to later steps. A highlight step, for
// example, reuses the rewrite step's returned intent instead of re-deriving
// terms.
type StepOutput struct {
	AssistantText string `json:"assistant_text,omitempty"`
	IntentJSON    string `json:"intent_json,omitempty"`
	OpsApplied    int    `json:"ops_applied"`
	OpsSkipped    int    `json:"ops_skipped"`
	WasRepaired   bool   `json:"was_repaired"`
	// PreviewRequested is set when the step's intent asked for a preview
	// round-trip instead of auto-apply.
	PreviewRequested bool `json:"preview_requested,omitempty"`
}

type StepResult struct {
	Kind     plan.StepKind `json:"kind"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Output   *StepOutput   `json:"output,omitempty"`
}

// Executor runs one capability step. Prior holds the results of every step
// already completed in this run, in order.
type Executor interface {
	ExecuteStep(ctx context.Context, step plan.Step, prior []StepResult) (*StepOutput, error)
}

type RunResult struct {
	State          RunState     `json:"state"`
	Success        bool         `json:"success"`
	CompletedSteps int          `json:"completed_steps"`
	TotalSteps     int          `json:"total_steps"`
	StepResults    []StepResult `json:"step_results"`
	Err            error        `json:"-"`
}

type Runner struct {
	log  *slog.Logger
	exec Executor
}

func NewRunner(exec Executor, log *slog.Logger) (*Runner, error) {
	if exec == nil {
		return nil, errors.New("nil executor")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log, exec: exec}, nil
}

// Run executes every step of p in order. The first step that returns an
// error (or panics into an error via the executor) terminates the run; the
// partial step results collected so far are returned with
// CompletedSteps < TotalSteps.
func (r *Runner) Run(ctx context.Context, p *plan.Plan) *RunResult {
	res := &RunResult{State: StatePending, TotalSteps: len(p.Steps)}
	if len(p.Steps) == 0 {
		res.State = StateFailed
		res.Err = errors.New("plan has no steps")
		return res
	}

	for i, step := range p.Steps {
		res.State = StateRunning
		r.log.Info("macro: step start", "step", i, "kind", step.Kind)

		start := time.Now()
		out, err := r.exec.ExecuteStep(ctx, step, res.StepResults)
		elapsed := time.Since(start)

		if err != nil {
			res.StepResults = append(res.StepResults, StepResult{
				Kind:     step.Kind,
				Success:  false,
				Error:    err.Error(),
				Duration: elapsed,
			})
			res.State = StateFailed
			res.Err = fmt.Errorf("step %d (%s): %w", i, step.Kind, err)
			r.log.Warn("macro: step failed, stopping run", "step", i, "kind", step.Kind, "err", err, "duration", elapsed)
			return res
		}

		res.StepResults = append(res.StepResults, StepResult{
			Kind:     step.Kind,
			Success:  true,
			Duration: elapsed,
			Output:   out,
		})
		res.CompletedSteps++
		r.log.Info("macro: step done", "step", i, "kind", step.Kind, "duration", elapsed)
	}

	res.State = StateCompleted
	res.Success = true
	return res
}
