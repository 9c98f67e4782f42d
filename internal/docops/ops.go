// Package docops turns LLM-proposed paragraph content into the smallest
// correct set of document tree mutations, and applies them.
//
// The pipeline inside one edit session is: repair (normalize untrusted
// paragraph arrays to a guaranteed shape) -> diff (positional comparison
// against the live paragraphs) -> apply (one atomic tree transaction with
// per-op outcomes).
package docops

import (
	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// OpKind discriminates SectionDocOp. Consumers switch exhaustively; adding a
// kind must touch every switch.
type OpKind string

const (
	OpReplaceParagraph     OpKind = "replace_paragraph"
	OpInsertParagraphAfter OpKind = "insert_paragraph_after"
	OpDeleteParagraph      OpKind = "delete_paragraph"
	OpApplyMark            OpKind = "apply_mark"
	OpAddComment           OpKind = "add_comment"
)

// ChangeStats summarizes the character-level change of one replace op. It is
// diagnostic only: previews and telemetry read it, apply ignores it.
type ChangeStats struct {
	CharsInserted int `json:"chars_inserted"`
	CharsDeleted  int `json:"chars_deleted"`
	CharsEqual    int `json:"chars_equal"`
}

// SectionDocOp is the final low-level mutation unit consumed by Apply.
//
//   - replace_paragraph: TargetKey, NewText, PreserveStyle, Index, Stats
//   - insert_paragraph_after: ReferenceKey, NewText, Index
//   - delete_paragraph: TargetKey, Index
//   - apply_mark: TargetKey, Mark
//   - add_comment: TargetKey (section key), NewText
type SectionDocOp struct {
	Kind OpKind `json:"kind"`

	TargetKey    string `json:"target_key,omitempty"`
	ReferenceKey string `json:"reference_key,omitempty"`

	NewText       string `json:"new_text,omitempty"`
	PreserveStyle bool   `json:"preserve_style,omitempty"`

	// Index is the position in the original (replace/delete) or proposed
	// (insert) paragraph ordering. Diagnostic; resolution is by key.
	Index int `json:"index"`

	Mark *docmodel.Mark `json:"mark,omitempty"`

	Stats *ChangeStats `json:"stats,omitempty"`
}

// changeStats computes ChangeStats for a text replacement.
func changeStats(oldText, newText string) *ChangeStats {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	var st ChangeStats
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			st.CharsInserted += n
		case diffmatchpatch.DiffDelete:
			st.CharsDeleted += n
		case diffmatchpatch.DiffEqual:
			st.CharsEqual += n
		}
	}
	return &st
}
