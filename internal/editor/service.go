// Package editor is the orchestrator: the single entry point the outer API
// layer is allowed to call. One RunSectionAIAction call sequences intent
// normalization, plan building, the macro runtime, and per-step
// parse -> repair -> diff -> apply against the document tree.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/docops"
	"github.com/docfold/docfold-agent/internal/docstore"
	"github.com/docfold/docfold-agent/internal/editlog"
	"github.com/docfold/docfold-agent/internal/llm"
	"github.com/docfold/docfold-agent/internal/macro"
	"github.com/docfold/docfold-agent/internal/plan"
	"github.com/docfold/docfold-agent/internal/schema"
)

var (
	ErrEditInFlight     = errors.New("an edit is already running for this document")
	ErrDocumentNotFound = errors.New("document not found")
)

type Options struct {
	Logger *slog.Logger

	Store   *docstore.Store
	Chat    llm.Client
	EditLog *editlog.Store

	// Model is the model id sent on every completion call.
	Model string

	// RequestTimeout bounds one LLM call. Zero means 120s.
	RequestTimeout time.Duration
}

type Service struct {
	log     *slog.Logger
	store   *docstore.Store
	chat    llm.Client
	editLog *editlog.Store

	model      string
	reqTimeout time.Duration

	mu     sync.Mutex
	active map[string]string // doc id -> session id
}

const defaultRequestTimeout = 120 * time.Second

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("missing Store")
	}
	if opts.Chat == nil {
		return nil, errors.New("missing Chat client")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("missing Model")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Service{
		log:        log,
		store:      opts.Store,
		chat:       opts.Chat,
		editLog:    opts.EditLog,
		model:      opts.Model,
		reqTimeout: timeout,
		active:     map[string]string{},
	}, nil
}

type ActionRequest struct {
	DocumentID string `json:"document_id"`
	SectionKey string `json:"section_key"`

	Intent plan.DocEditIntent `json:"intent"`

	// Preview computes ops without applying any of them.
	Preview bool `json:"preview,omitempty"`
}

type ActionResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`

	AssistantText string                  `json:"assistant_text,omitempty"`
	Intent        *schema.CanonicalIntent `json:"intent,omitempty"`
	DocOpsPlan    *schema.DocOpsPlan      `json:"docops_plan,omitempty"`

	// DocOps holds every low-level op this session produced, applied or
	// pending (see Applied).
	DocOps  []docops.SectionDocOp `json:"doc_ops,omitempty"`
	Applied bool                  `json:"applied"`

	ApplyReport *docops.ApplyReport `json:"apply_report,omitempty"`

	RunState       macro.RunState     `json:"run_state"`
	CompletedSteps int                `json:"completed_steps"`
	TotalSteps     int                `json:"total_steps"`
	StepResults    []macro.StepResult `json:"step_results,omitempty"`

	Error string `json:"error,omitempty"`
}

// tryAcquire claims the per-document edit slot. There is no queue: a busy
// document rejects the second request outright.
func (s *Service) tryAcquire(docID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, busy := s.active[docID]; busy {
		s.log.Warn("edit rejected, session in flight", "doc_id", docID, "holder", holder)
		return ErrEditInFlight
	}
	s.active[docID] = sessionID
	return nil
}

func (s *Service) release(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, docID)
}

// RunSectionAIAction runs one full edit session against one section.
//
// Concurrency and document lookups fail before any model call or mutation;
// everything after that flows through the macro runtime, and the document is
// persisted only when at least one op actually applied.
func (s *Service) RunSectionAIAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	sessionID := "es_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	res := &ActionResult{SessionID: sessionID, RunState: macro.StatePending}

	docID := strings.TrimSpace(req.DocumentID)
	if docID == "" {
		res.Error = "missing document_id"
		return res, errors.New(res.Error)
	}

	if err := s.tryAcquire(docID, sessionID); err != nil {
		s.editLog.Append(editlog.Entry{
			Event:      editlog.EventSessionRejected,
			DocumentID: docID,
			SectionKey: req.SectionKey,
			SessionID:  sessionID,
		})
		res.Error = err.Error()
		return res, err
	}
	defer s.release(docID)

	started := time.Now()

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	if doc == nil {
		res.Error = ErrDocumentNotFound.Error()
		return res, ErrDocumentNotFound
	}
	if doc.FindSection(req.SectionKey) == nil {
		res.Error = docmodel.ErrSectionNotFound.Error()
		return res, docmodel.ErrSectionNotFound
	}

	normalized := plan.NormalizeDocEditIntent(req.Intent)
	p, err := plan.BuildDocEditPlanForIntent(normalized, req.SectionKey)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	exec := &stepExecutor{
		svc:        s,
		doc:        doc,
		sessionID:  sessionID,
		intentID:   "in_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		preview:    req.Preview,
		singleStep: len(p.Steps) == 1,
	}
	runner, err := macro.NewRunner(exec, s.log)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	runRes := runner.Run(ctx, p)

	res.RunState = runRes.State
	res.CompletedSteps = runRes.CompletedSteps
	res.TotalSteps = runRes.TotalSteps
	res.StepResults = runRes.StepResults
	res.AssistantText = exec.assistantText()
	res.Intent = exec.lastIntent
	res.DocOpsPlan = exec.lastPlan
	res.DocOps = exec.allOps
	res.Applied = exec.appliedAny
	if exec.applyAgg.Applied+exec.applyAgg.Skipped > 0 {
		agg := exec.applyAgg
		res.ApplyReport = &agg
	}
	res.Success = runRes.Success
	if runRes.Err != nil {
		res.Error = runRes.Err.Error()
	}

	if exec.appliedAny {
		if err := s.store.SaveDocument(ctx, doc); err != nil {
			res.Success = false
			res.Error = fmt.Sprintf("persist document: %v", err)
			s.recordSession(ctx, docID, req.SectionKey, res, started)
			return res, err
		}
	}

	s.recordSession(ctx, docID, req.SectionKey, res, started)
	if runRes.Err != nil {
		return res, runRes.Err
	}
	return res, nil
}

func (s *Service) recordSession(ctx context.Context, docID, sectionKey string, res *ActionResult, started time.Time) {
	stepsJSON, _ := json.Marshal(res.StepResults)
	var intentJSON []byte
	if res.Intent != nil {
		intentJSON, _ = json.Marshal(res.Intent)
	}
	err := s.store.InsertEditSession(ctx, docstore.EditSession{
		SessionID:      res.SessionID,
		DocID:          docID,
		SectionKey:     sectionKey,
		Success:        res.Success,
		Error:          res.Error,
		CompletedSteps: res.CompletedSteps,
		TotalSteps:     res.TotalSteps,
		IntentJSON:     string(intentJSON),
		StepsJSON:      string(stepsJSON),
		DurationMs:     time.Since(started).Milliseconds(),
	})
	if err != nil {
		s.log.Warn("record edit session failed", "session_id", res.SessionID, "err", err)
	}
	s.editLog.Append(editlog.Entry{
		Event:      editlog.EventSessionDone,
		DocumentID: docID,
		SectionKey: sectionKey,
		SessionID:  res.SessionID,
		Detail: map[string]any{
			"success":         res.Success,
			"completed_steps": res.CompletedSteps,
			"total_steps":     res.TotalSteps,
			"applied":         res.Applied,
		},
	})
}
