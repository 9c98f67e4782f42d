package macro

import (
	"context"
	"errors"
	"testing"

	"github.com/docfold/docfold-agent/internal/plan"
)

type scriptedExecutor struct {
	failAt  int // step index that fails, -1 for none
	calls   []plan.StepKind
	priors  [][]StepResult
	outputs []*StepOutput
}

func (e *scriptedExecutor) ExecuteStep(ctx context.Context, step plan.Step, prior []StepResult) (*StepOutput, error) {
	e.calls = append(e.calls, step.Kind)
	snapshot := make([]StepResult, len(prior))
	copy(snapshot, prior)
	e.priors = append(e.priors, snapshot)
	if len(e.calls)-1 == e.failAt {
		return nil, errors.New("scripted failure")
	}
	out := &StepOutput{IntentJSON: `{"step":` + string(rune('0'+len(e.calls))) + `}`, OpsApplied: 1}
	e.outputs = append(e.outputs, out)
	return out, nil
}

func threeStepPlan() *plan.Plan {
	return &plan.Plan{
		SectionKey: "nk_1",
		Steps: []plan.Step{
			{Kind: plan.StepRewriteSection, SectionKey: "nk_1"},
			{Kind: plan.StepHighlightSentences, SectionKey: "nk_1"},
			{Kind: plan.StepAppendSummary, SectionKey: "nk_1"},
		},
	}
}

func TestRunner_AllStepsSucceed(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{failAt: -1}
	r, err := NewRunner(exec, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	res := r.Run(context.Background(), threeStepPlan())
	if !res.Success || res.State != StateCompleted {
		t.Fatalf("state=%q success=%v", res.State, res.Success)
	}
	if res.CompletedSteps != 3 || res.TotalSteps != 3 {
		t.Fatalf("completed=%d total=%d", res.CompletedSteps, res.TotalSteps)
	}
	if len(res.StepResults) != 3 {
		t.Fatalf("results=%d", len(res.StepResults))
	}
	for i, sr := range res.StepResults {
		if !sr.Success || sr.Output == nil {
			t.Fatalf("step %d: %+v", i, sr)
		}
		if sr.Duration < 0 {
			t.Fatalf("step %d duration %v", i, sr.Duration)
		}
	}
}

func TestRunner_StopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{failAt: 1}
	r, _ := NewRunner(exec, nil)
	res := r.Run(context.Background(), threeStepPlan())
	if res.Success || res.State != StateFailed {
		t.Fatalf("state=%q success=%v", res.State, res.Success)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("executor called %d times, want 2 (no step after the failure)", len(exec.calls))
	}
	if res.CompletedSteps != 1 {
		t.Fatalf("completed=%d", res.CompletedSteps)
	}
	if len(res.StepResults) != 2 {
		t.Fatalf("results=%d, want failed step recorded", len(res.StepResults))
	}
	last := res.StepResults[1]
	if last.Success || last.Error == "" {
		t.Fatalf("failed step result: %+v", last)
	}
	if res.Err == nil {
		t.Fatalf("missing run error")
	}
}

func TestRunner_PriorResultsAccumulate(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{failAt: -1}
	r, _ := NewRunner(exec, nil)
	_ = r.Run(context.Background(), threeStepPlan())

	for i, prior := range exec.priors {
		if len(prior) != i {
			t.Fatalf("step %d saw %d prior results", i, len(prior))
		}
	}
	// The second step sees the first step's output, not a copy with fields
	// stripped.
	if exec.priors[1][0].Output == nil || exec.priors[1][0].Output.IntentJSON == "" {
		t.Fatalf("prior output not forwarded: %+v", exec.priors[1][0])
	}
}

func TestRunner_EmptyPlanFails(t *testing.T) {
	t.Parallel()

	r, _ := NewRunner(&scriptedExecutor{failAt: -1}, nil)
	res := r.Run(context.Background(), &plan.Plan{SectionKey: "nk_1"})
	if res.State != StateFailed || res.Err == nil {
		t.Fatalf("res=%+v", res)
	}
}

func TestNewRunner_NilExecutor(t *testing.T) {
	t.Parallel()

	if _, err := NewRunner(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
