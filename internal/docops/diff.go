package docops

import (
	"errors"
	"fmt"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/schema"
)

// Mode selects which diff behaviors are permitted.
type Mode string

const (
	// ModeRewrite allows replace, delete and insert.
	ModeRewrite Mode = "rewrite"
	// ModeSummarize allows replace and delete only; the section must not grow.
	ModeSummarize Mode = "summarize"
	// ModeExpand allows all three and growth is the expected case.
	ModeExpand Mode = "expand"
)

var ErrGrowthNotAllowed = errors.New("proposed paragraphs exceed original count in a no-growth mode")

// BuildSectionDocOpsDiff walks the original paragraph list by position
// against the proposed list and emits the minimal op set:
//
//   - same position, same text: nothing
//   - same position, changed text: replace_paragraph (style preserved)
//   - proposed beyond original length: insert_paragraph_after anchored to the
//     last original node, in proposed order
//   - original beyond proposed length: delete_paragraph
//
// Ops come back in a stable order: replaces by ascending original index,
// then deletes by descending index (so earlier deletes cannot shift later
// targets), then inserts by ascending position.
//
// The proposed slice is expected to be repair output: dense, index == slice
// position for the overlapping range. A proposed entry whose Index disagrees
// with its position is rejected as a caller bug.
func BuildSectionDocOpsDiff(paragraphs []docmodel.ParagraphInfo, proposed []schema.LlmParagraph, mode Mode) ([]SectionDocOp, error) {
	switch mode {
	case ModeRewrite, ModeSummarize, ModeExpand:
	default:
		return nil, fmt.Errorf("unknown diff mode %q", mode)
	}
	if len(proposed) > len(paragraphs) && mode == ModeSummarize {
		return nil, ErrGrowthNotAllowed
	}
	for i, p := range proposed {
		if p.Index != i {
			return nil, fmt.Errorf("proposed[%d] has index %d; run repair first", i, p.Index)
		}
	}

	var replaces, deletes, inserts []SectionDocOp

	common := len(paragraphs)
	if len(proposed) < common {
		common = len(proposed)
	}
	for i := 0; i < common; i++ {
		if proposed[i].Text == paragraphs[i].Text {
			continue
		}
		replaces = append(replaces, SectionDocOp{
			Kind:          OpReplaceParagraph,
			TargetKey:     paragraphs[i].NodeKey,
			NewText:       proposed[i].Text,
			PreserveStyle: true,
			Index:         i,
			Stats:         changeStats(paragraphs[i].Text, proposed[i].Text),
		})
	}

	// Deletes descending so the op list reads back-to-front.
	for i := len(paragraphs) - 1; i >= len(proposed); i-- {
		deletes = append(deletes, SectionDocOp{
			Kind:      OpDeleteParagraph,
			TargetKey: paragraphs[i].NodeKey,
			Index:     i,
		})
	}

	if len(proposed) > len(paragraphs) {
		if len(paragraphs) == 0 {
			return nil, errors.New("cannot anchor inserts: section has no paragraphs")
		}
		anchor := paragraphs[len(paragraphs)-1].NodeKey
		for i := len(paragraphs); i < len(proposed); i++ {
			inserts = append(inserts, SectionDocOp{
				Kind:         OpInsertParagraphAfter,
				ReferenceKey: anchor,
				NewText:      proposed[i].Text,
				Index:        i,
			})
		}
	}

	ops := make([]SectionDocOp, 0, len(replaces)+len(deletes)+len(inserts))
	ops = append(ops, replaces...)
	ops = append(ops, deletes...)
	ops = append(ops, inserts...)
	return ops, nil
}
