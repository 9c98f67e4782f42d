package editor

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/docops"
	"github.com/docfold/docfold-agent/internal/plan"
	"github.com/docfold/docfold-agent/internal/schema"
)

type translateInfo struct {
	WasRepaired   bool
	RepairDetails *docops.RepairDetails
	// SkippedPlanOps records plan-level ops dropped before apply (wrong
	// section, duplicate replace_range, unresolvable index).
	SkippedPlanOps []string
}

func diffModeForStep(step plan.Step) docops.Mode {
	switch step.Kind {
	case plan.StepAppendSummary:
		return docops.ModeExpand
	case plan.StepRewriteSection:
		switch step.Shape {
		case plan.RewriteShapeSummarize:
			return docops.ModeSummarize
		case plan.RewriteShapeExpand:
			return docops.ModeExpand
		}
	}
	return docops.ModeRewrite
}

// translatePlanOps lowers the LLM's DocOpsPlan into SectionDocOps against
// the section context the step was prompted with. Plan ops that cannot be
// lowered are dropped with a note, never fatal: the plan already passed
// semantic validation, so whatever remains is worth applying.
func translatePlanOps(sc *docmodel.SectionContext, step plan.Step, p *schema.DocOpsPlan, log *slog.Logger) ([]docops.SectionDocOp, translateInfo) {
	var (
		out  []docops.SectionDocOp
		info translateInfo
	)
	mode := diffModeForStep(step)
	sawReplaceRange := false

	skip := func(reason string) {
		info.SkippedPlanOps = append(info.SkippedPlanOps, reason)
		log.Warn("translate: dropping plan op", "reason", reason)
	}

	for i, op := range p.Ops {
		if sid := strings.TrimSpace(op.Scope.SectionID); sid != "" && sid != sc.SectionKey {
			skip("ops[" + itoa(i) + "]: targets a different section " + sid)
			continue
		}

		switch op.Type {
		case schema.OpReplaceRange:
			if sawReplaceRange {
				skip("ops[" + itoa(i) + "]: duplicate replace_range")
				continue
			}
			sawReplaceRange = true
			repaired := docops.RepairSectionParagraphs(sc.OwnParagraphs, op.Payload.Paragraphs, docops.RepairOptions{
				AllowGrowth: mode == docops.ModeExpand,
				Logger:      log,
			})
			info.WasRepaired = repaired.WasRepaired
			details := repaired.Details
			info.RepairDetails = &details
			diffOps, err := docops.BuildSectionDocOpsDiff(sc.OwnParagraphs, repaired.Paragraphs, mode)
			if err != nil {
				// Repair guarantees shape, so this is a mode violation (e.g.
				// growth under summarize); drop the op rather than the session.
				skip("ops[" + itoa(i) + "]: diff rejected: " + err.Error())
				continue
			}
			out = append(out, diffOps...)

		case schema.OpApplyMark:
			idx := op.Payload.ParagraphIndex
			if idx < 0 || idx >= len(sc.OwnParagraphs) {
				skip("ops[" + itoa(i) + "]: apply_mark paragraphIndex out of range")
				continue
			}
			markType := strings.TrimSpace(op.Payload.MarkType)
			if markType == "" {
				markType = "highlight"
			}
			out = append(out, docops.SectionDocOp{
				Kind:      docops.OpApplyMark,
				TargetKey: sc.OwnParagraphs[idx].NodeKey,
				Index:     idx,
				Mark: &docmodel.Mark{
					Type:        markType,
					StartOffset: op.Payload.StartOffset,
					EndOffset:   op.Payload.EndOffset,
				},
			})

		case schema.OpInsertAfterSection:
			texts := paragraphTexts(op.Payload.Paragraphs)
			if len(texts) == 0 {
				skip("ops[" + itoa(i) + "]: insert_after_section without usable paragraphs")
				continue
			}
			anchor := ""
			if n := len(sc.OwnParagraphs); n > 0 {
				anchor = sc.OwnParagraphs[n-1].NodeKey
			}
			for k, text := range texts {
				sop := docops.SectionDocOp{
					Kind:         docops.OpInsertParagraphAfter,
					ReferenceKey: anchor,
					NewText:      text,
					Index:        len(sc.OwnParagraphs) + k,
				}
				if anchor == "" {
					sop.TargetKey = sc.SectionKey
				}
				out = append(out, sop)
			}

		case schema.OpInsertParagraphAfter:
			idx := op.Payload.AfterIndex
			if idx < 0 || idx >= len(sc.OwnParagraphs) {
				skip("ops[" + itoa(i) + "]: insert_paragraph_after afterIndex out of range")
				continue
			}
			out = append(out, docops.SectionDocOp{
				Kind:         docops.OpInsertParagraphAfter,
				ReferenceKey: sc.OwnParagraphs[idx].NodeKey,
				NewText:      op.Payload.Text,
				Index:        idx + 1,
			})

		case schema.OpAddComment:
			out = append(out, docops.SectionDocOp{
				Kind:      docops.OpAddComment,
				TargetKey: sc.SectionKey,
				NewText:   op.Payload.Text,
			})

		default:
			skip("ops[" + itoa(i) + "]: unknown op type " + op.Type)
		}
	}
	return out, info
}

// paragraphTexts pulls the ordered nonempty texts out of a lenient
// paragraphs payload.
func paragraphTexts(raw []byte) []string {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return nil
	}
	var out []string
	for _, e := range parsed.Array() {
		if text := e.Get("text").String(); strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
