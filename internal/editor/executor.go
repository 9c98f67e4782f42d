package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/docops"
	"github.com/docfold/docfold-agent/internal/editlog"
	"github.com/docfold/docfold-agent/internal/llm"
	"github.com/docfold/docfold-agent/internal/macro"
	"github.com/docfold/docfold-agent/internal/plan"
	"github.com/docfold/docfold-agent/internal/prompt"
	"github.com/docfold/docfold-agent/internal/schema"
)

// stepExecutor runs one capability step end to end: prompt, completion,
// parse, translate, apply. It is the macro runtime's Executor for exactly
// one session and carries that session's accumulated state.
type stepExecutor struct {
	svc *Service
	doc *docmodel.Document

	sessionID string
	// intentID is generated per session and echoed back by the model; the
	// schema layer enforces the echo across both JSON documents.
	intentID string

	preview    bool
	singleStep bool

	notes      []string
	lastIntent *schema.CanonicalIntent
	lastPlan   *schema.DocOpsPlan
	allOps     []docops.SectionDocOp
	appliedAny bool
	applyAgg   docops.ApplyReport
}

func (e *stepExecutor) assistantText() string {
	return strings.Join(e.notes, "\n")
}

func (e *stepExecutor) ExecuteStep(ctx context.Context, step plan.Step, prior []macro.StepResult) (*macro.StepOutput, error) {
	sc, err := e.doc.ContextForSection(step.SectionKey)
	if err != nil {
		return nil, err
	}

	var priorIntentJSON string
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Success && prior[i].Output != nil && prior[i].Output.IntentJSON != "" {
			priorIntentJSON = prior[i].Output.IntentJSON
			break
		}
	}

	messages := prompt.BuildStepMessages(step, sc, e.intentID, priorIntentJSON)

	cctx, cancel := context.WithTimeout(ctx, e.svc.reqTimeout)
	defer cancel()
	completion, err := e.svc.chat.Chat(cctx, llm.ChatRequest{Model: e.svc.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}
	if !completion.Success {
		return nil, fmt.Errorf("llm failure: %s", completion.Error)
	}

	parsed, err := schema.ParseAssistantResponse(completion.Content)
	if err != nil {
		var pe *schema.ParseError
		if errors.As(err, &pe) {
			e.svc.editLog.Append(editlog.Entry{
				Event:      editlog.EventProtocolError,
				DocumentID: e.doc.ID,
				SectionKey: step.SectionKey,
				SessionID:  e.sessionID,
				Detail:     map[string]any{"doc": pe.Doc, "msg": pe.Msg, "raw": pe.RawSnippet},
			})
		}
		return nil, err
	}

	report := schema.ValidateDocOpsPlan(parsed.Plan)
	for _, w := range report.Warnings {
		e.svc.log.Warn("docops plan warning", "session_id", e.sessionID, "warning", w)
	}
	if !report.Valid {
		e.svc.editLog.Append(editlog.Entry{
			Event:      editlog.EventProtocolError,
			DocumentID: e.doc.ID,
			SectionKey: step.SectionKey,
			SessionID:  e.sessionID,
			Detail:     map[string]any{"doc": "docops", "errors": report.Errors},
		})
		return nil, fmt.Errorf("docops plan invalid: %s", strings.Join(report.Errors, "; "))
	}

	if note := strings.TrimSpace(parsed.AssistantText); note != "" {
		e.notes = append(e.notes, note)
	}
	e.lastIntent = parsed.Intent
	e.lastPlan = parsed.Plan

	ops, tinfo := translatePlanOps(sc, step, parsed.Plan, e.svc.log)
	if tinfo.RepairDetails != nil && tinfo.WasRepaired {
		e.svc.editLog.Append(editlog.Entry{
			Event:      editlog.EventRepairFallback,
			DocumentID: e.doc.ID,
			SectionKey: step.SectionKey,
			SessionID:  e.sessionID,
			Detail: map[string]any{
				"input_type":       tinfo.RepairDetails.InputType,
				"original_count":   tinfo.RepairDetails.OriginalCount,
				"valid_new_count":  tinfo.RepairDetails.ValidNewCount,
				"fallback_indices": tinfo.RepairDetails.FallbackIndices,
			},
		})
	}
	e.allOps = append(e.allOps, ops...)

	out := &macro.StepOutput{
		AssistantText: parsed.AssistantText,
		WasRepaired:   tinfo.WasRepaired,
	}
	if ij, err := json.Marshal(parsed.Intent); err == nil {
		out.IntentJSON = string(ij)
	}

	// A preview round-trip is honored for single-step sessions (and for an
	// explicit preview request on the whole session). Inside a multi-step
	// macro a per-step preview wish is recorded but the macro proceeds: the
	// user asked for the composite action.
	previewRequested := parsed.Intent.ResponseMode != schema.ResponseModeAutoApply
	out.PreviewRequested = previewRequested
	if e.preview || (previewRequested && e.singleStep) {
		e.svc.log.Info("step computed ops without applying (preview)",
			"session_id", e.sessionID, "kind", step.Kind, "ops", len(ops))
		return out, nil
	}

	applyReport, err := docops.Apply(e.doc, ops, e.svc.log)
	if err != nil {
		return nil, err
	}
	for _, oc := range applyReport.Outcomes {
		if oc.Status != docops.OutcomeSkipped {
			continue
		}
		e.svc.editLog.Append(editlog.Entry{
			Event:      editlog.EventOpSkipped,
			DocumentID: e.doc.ID,
			SectionKey: step.SectionKey,
			SessionID:  e.sessionID,
			Detail:     map[string]any{"kind": string(oc.Kind), "index": oc.Index, "reason": oc.Reason},
		})
	}
	e.applyAgg.Applied += applyReport.Applied
	e.applyAgg.Skipped += applyReport.Skipped
	e.applyAgg.Outcomes = append(e.applyAgg.Outcomes, applyReport.Outcomes...)
	if applyReport.Applied > 0 {
		e.appliedAny = true
	}

	out.OpsApplied = applyReport.Applied
	out.OpsSkipped = applyReport.Skipped
	return out, nil
}
