package schema

// DocOpsPlan is the second wire contract: the concrete low-level operations
// the LLM wants applied. Parsing is deliberately separate from semantic
// validation so a syntactically valid but incomplete plan can still be
// inspected and logged.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DocOpsPlanVersion is the only wire version this agent speaks.
const DocOpsPlanVersion = "1.0"

// Plan op types, discriminated by PlanOp.Type.
const (
	OpReplaceRange         = "replace_range"
	OpApplyMark            = "apply_mark"
	OpInsertAfterSection   = "insert_after_section"
	OpInsertParagraphAfter = "insert_paragraph_after"
	OpAddComment           = "add_comment"
)

// LlmParagraph is one paragraph as proposed by the LLM. Index refers to the
// position in the ORIGINAL paragraph ordering of the target section.
type LlmParagraph struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type OpScope struct {
	SectionID string `json:"sectionId"`

	Extra map[string]json.RawMessage `json:"-"`
}

var opScopeKnownFields = map[string]bool{"sectionId": true}

func (s *OpScope) UnmarshalJSON(data []byte) error {
	type plain OpScope
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = OpScope(p)
	extra, err := splitExtra(data, opScopeKnownFields)
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s OpScope) MarshalJSON() ([]byte, error) {
	type plain OpScope
	return mergeExtra(plain(s), s.Extra)
}

// OpPayload carries the per-type payload fields. Paragraphs stays raw because
// its shape is exactly what the repair layer exists to distrust.
type OpPayload struct {
	// replace_range, insert_after_section
	Paragraphs json.RawMessage `json:"paragraphs,omitempty"`

	// apply_mark
	ParagraphIndex int    `json:"paragraphIndex,omitempty"`
	StartOffset    int    `json:"startOffset,omitempty"`
	EndOffset      int    `json:"endOffset,omitempty"`
	MarkType       string `json:"markType,omitempty"`

	// insert_paragraph_after
	AfterIndex int `json:"afterIndex,omitempty"`

	// insert_paragraph_after, add_comment
	Text string `json:"text,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var opPayloadKnownFields = map[string]bool{
	"paragraphs": true, "paragraphIndex": true, "startOffset": true,
	"endOffset": true, "markType": true, "afterIndex": true, "text": true,
}

func (p *OpPayload) UnmarshalJSON(data []byte) error {
	type plain OpPayload
	var pl plain
	if err := json.Unmarshal(data, &pl); err != nil {
		return err
	}
	*p = OpPayload(pl)
	extra, err := splitExtra(data, opPayloadKnownFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

func (p OpPayload) MarshalJSON() ([]byte, error) {
	type plain OpPayload
	return mergeExtra(plain(p), p.Extra)
}

// DecodedParagraphs decodes payload.paragraphs strictly. Callers that can
// tolerate malformed shapes go through the repair layer instead.
func (p OpPayload) DecodedParagraphs() ([]LlmParagraph, error) {
	if len(p.Paragraphs) == 0 {
		return nil, nil
	}
	var out []LlmParagraph
	if err := json.Unmarshal(p.Paragraphs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type PlanOp struct {
	Type    string    `json:"type"`
	Scope   OpScope   `json:"scope"`
	Payload OpPayload `json:"payload,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var planOpKnownFields = map[string]bool{"type": true, "scope": true, "payload": true}

func (op *PlanOp) UnmarshalJSON(data []byte) error {
	type plain PlanOp
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*op = PlanOp(p)
	extra, err := splitExtra(data, planOpKnownFields)
	if err != nil {
		return err
	}
	op.Extra = extra
	return nil
}

func (op PlanOp) MarshalJSON() ([]byte, error) {
	type plain PlanOp
	return mergeExtra(plain(op), op.Extra)
}

type DocOpsPlan struct {
	Version  string   `json:"version"`
	IntentID string   `json:"intentId,omitempty"`
	Ops      []PlanOp `json:"ops"`

	Extra map[string]json.RawMessage `json:"-"`
}

var planKnownFields = map[string]bool{"version": true, "intentId": true, "ops": true}

func (pl *DocOpsPlan) UnmarshalJSON(data []byte) error {
	type plain DocOpsPlan
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*pl = DocOpsPlan(p)
	extra, err := splitExtra(data, planKnownFields)
	if err != nil {
		return err
	}
	pl.Extra = extra
	return nil
}

func (pl DocOpsPlan) MarshalJSON() ([]byte, error) {
	type plain DocOpsPlan
	return mergeExtra(plain(pl), pl.Extra)
}

// ParseDocOpsPlan validates and decodes a docops document. The error, when
// non-nil, is a *ParseError.
func ParseDocOpsPlan(raw []byte) (*DocOpsPlan, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, newParseError("docops", "empty segment", trimmed, nil)
	}
	_, docopsSch, err := compiledSchemas()
	if err != nil {
		return nil, err
	}
	causes, err := validateAgainst(docopsSch, []byte(trimmed))
	if err != nil {
		return nil, newParseError("docops", "invalid json", trimmed, err)
	}
	if len(causes) > 0 {
		return nil, newParseError("docops", "schema validation failed", trimmed, nil, causes...)
	}
	var plan DocOpsPlan
	if err := json.Unmarshal([]byte(trimmed), &plan); err != nil {
		return nil, newParseError("docops", "decode failed", trimmed, err)
	}
	return &plan, nil
}

// ValidationReport is the outcome of the cross-field checks the type system
// (and the structural schema) cannot express.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *ValidationReport) errf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateDocOpsPlan performs semantic validation of a parsed plan.
func ValidateDocOpsPlan(plan *DocOpsPlan) ValidationReport {
	var r ValidationReport
	if plan == nil {
		r.errf("plan is nil")
		return r
	}
	if plan.Version != DocOpsPlanVersion {
		r.errf("unsupported version %q (want %q)", plan.Version, DocOpsPlanVersion)
	}
	if len(plan.Ops) == 0 {
		r.errf("ops is empty")
	}
	for i, op := range plan.Ops {
		if strings.TrimSpace(op.Scope.SectionID) == "" {
			r.errf("ops[%d]: missing scope.sectionId", i)
		}
		switch op.Type {
		case OpReplaceRange:
			validateReplaceRange(&r, i, op)
		case OpApplyMark:
			if op.Payload.StartOffset < 0 || op.Payload.EndOffset < op.Payload.StartOffset {
				r.errf("ops[%d]: apply_mark offsets invalid (start=%d end=%d)", i, op.Payload.StartOffset, op.Payload.EndOffset)
			}
			if strings.TrimSpace(op.Payload.MarkType) == "" {
				r.warnf("ops[%d]: apply_mark missing markType, defaulting to highlight", i)
			}
		case OpInsertAfterSection:
			parsed := gjson.ParseBytes(op.Payload.Paragraphs)
			if !parsed.IsArray() || len(parsed.Array()) == 0 {
				r.errf("ops[%d]: insert_after_section requires a nonempty paragraphs payload", i)
			}
		case OpInsertParagraphAfter:
			if op.Payload.AfterIndex < 0 {
				r.errf("ops[%d]: insert_paragraph_after afterIndex must be >= 0", i)
			}
			if strings.TrimSpace(op.Payload.Text) == "" {
				r.errf("ops[%d]: insert_paragraph_after requires text", i)
			}
		case OpAddComment:
			if strings.TrimSpace(op.Payload.Text) == "" {
				r.errf("ops[%d]: add_comment requires text", i)
			}
		default:
			r.warnf("ops[%d]: unknown op type %q (will be skipped)", i, op.Type)
		}
	}
	r.Valid = len(r.Errors) == 0
	return r
}

func validateReplaceRange(r *ValidationReport, i int, op PlanOp) {
	parsed := gjson.ParseBytes(op.Payload.Paragraphs)
	if !parsed.IsArray() {
		r.errf("ops[%d]: replace_range paragraphs payload is not an array", i)
		return
	}
	entries := parsed.Array()
	if len(entries) == 0 {
		r.errf("ops[%d]: replace_range paragraphs payload is empty", i)
		return
	}
	for j, e := range entries {
		idx := e.Get("index")
		if !idx.Exists() || idx.Type != gjson.Number || idx.Int() < 0 || float64(idx.Int()) != idx.Float() {
			r.warnf("ops[%d].paragraphs[%d]: invalid index (repair will drop it)", i, j)
		}
	}
}
