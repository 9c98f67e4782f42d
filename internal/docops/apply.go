package docops

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/docfold/docfold-agent/internal/docmodel"
)

// Per-op outcome status.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
)

type OpOutcome struct {
	Kind   OpKind `json:"kind"`
	Index  int    `json:"index"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ApplyReport aggregates per-op outcomes for one batch.
type ApplyReport struct {
	Applied  int         `json:"applied"`
	Skipped  int         `json:"skipped"`
	Outcomes []OpOutcome `json:"outcomes"`
}

func (r *ApplyReport) record(op SectionDocOp, status, reason string) {
	r.Outcomes = append(r.Outcomes, OpOutcome{Kind: op.Kind, Index: op.Index, Status: status, Reason: reason})
	if status == OutcomeApplied {
		r.Applied++
	} else {
		r.Skipped++
	}
}

// Apply executes the whole batch inside one tree transaction.
//
// A referenced node that no longer resolves (stale key, already deleted)
// skips that single op with a warning; partial application of a best-effort
// edit beats aborting it halfway. The returned error covers only batch-level
// failures (nil document, mark payload missing), never per-op resolution.
func Apply(doc *docmodel.Document, ops []SectionDocOp, log *slog.Logger) (*ApplyReport, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if log == nil {
		log = slog.Default()
	}

	report := &ApplyReport{}
	err := doc.Update(func(tx *docmodel.Tx) error {
		// Successive inserts that share a reference key must land in op
		// order, so each one re-anchors to the node inserted before it.
		lastInserted := map[string]string{}

		for _, op := range ops {
			switch op.Kind {
			case OpReplaceParagraph:
				if err := tx.ReplaceParagraph(op.TargetKey, op.NewText, op.PreserveStyle); err != nil {
					skip(log, report, op, err)
					continue
				}
				report.record(op, OutcomeApplied, "")

			case OpInsertParagraphAfter:
				// An empty reference key means "append at the end of the
				// section named by TargetKey" (used when the section had no
				// paragraph to anchor on).
				if op.ReferenceKey == "" {
					if _, err := tx.AppendParagraph(op.TargetKey, op.NewText, ""); err != nil {
						skip(log, report, op, err)
						continue
					}
					report.record(op, OutcomeApplied, "")
					continue
				}
				ref := op.ReferenceKey
				if moved, ok := lastInserted[op.ReferenceKey]; ok {
					ref = moved
				}
				newKey, err := tx.InsertParagraphAfter(ref, op.NewText)
				if err != nil {
					skip(log, report, op, err)
					continue
				}
				lastInserted[op.ReferenceKey] = newKey
				report.record(op, OutcomeApplied, "")

			case OpDeleteParagraph:
				if err := tx.DeleteParagraph(op.TargetKey); err != nil {
					skip(log, report, op, err)
					continue
				}
				report.record(op, OutcomeApplied, "")

			case OpApplyMark:
				if op.Mark == nil {
					return fmt.Errorf("apply_mark op at index %d has no mark payload", op.Index)
				}
				if err := tx.ApplyMark(op.TargetKey, *op.Mark); err != nil {
					skip(log, report, op, err)
					continue
				}
				report.record(op, OutcomeApplied, "")

			case OpAddComment:
				if err := tx.AddComment(op.TargetKey, op.NewText); err != nil {
					skip(log, report, op, err)
					continue
				}
				report.record(op, OutcomeApplied, "")

			default:
				skip(log, report, op, fmt.Errorf("unknown op kind %q", op.Kind))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func skip(log *slog.Logger, report *ApplyReport, op SectionDocOp, cause error) {
	log.Warn("apply: skipping op", "kind", op.Kind, "index", op.Index, "reason", cause.Error())
	report.record(op, OutcomeSkipped, cause.Error())
}
