package schema

// CanonicalIntent is the LLM wire contract describing what the model wants
// to do to the document. Field names are camelCase on the wire (that is the
// contract the prompt dictates); unknown fields are preserved verbatim so a
// newer model talking a richer dialect does not lose information round-tripping
// through this agent.

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

type ResponseMode string

const (
	ResponseModeAutoApply ResponseMode = "auto_apply"
	ResponseModePreview   ResponseMode = "preview"
	ResponseModeClarify   ResponseMode = "clarify"
)

type ScopeTarget string

const (
	TargetDocument     ScopeTarget = "document"
	TargetSection      ScopeTarget = "section"
	TargetSelection    ScopeTarget = "selection"
	TargetOutlineRange ScopeTarget = "outline_range"
)

// confidence below this defaults responseMode to preview.
const previewConfidenceThreshold = 0.5

type OutlineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IntentScope says where the intent applies. Selection is kept raw: the
// editor surface owns its shape and this agent only routes it.
type IntentScope struct {
	Target       ScopeTarget     `json:"target,omitempty"`
	SectionID    string          `json:"sectionId,omitempty"`
	Selection    json.RawMessage `json:"selection,omitempty"`
	OutlineRange *OutlineRange   `json:"outlineRange,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var scopeKnownFields = map[string]bool{"target": true, "sectionId": true, "selection": true, "outlineRange": true}

func (s *IntentScope) UnmarshalJSON(data []byte) error {
	type plain IntentScope
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = IntentScope(p)
	extra, err := splitExtra(data, scopeKnownFields)
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s IntentScope) MarshalJSON() ([]byte, error) {
	type plain IntentScope
	return mergeExtra(plain(s), s.Extra)
}

// IntentTask is one task inside an intent, discriminated by Type. The full
// raw task object is retained; typed accessors read from it on demand.
type IntentTask struct {
	Type string
	Raw  json.RawMessage
}

func (t *IntentTask) UnmarshalJSON(data []byte) error {
	t.Raw = append(t.Raw[:0], data...)
	t.Type = strings.TrimSpace(gjson.GetBytes(data, "type").String())
	return nil
}

func (t IntentTask) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	return json.Marshal(map[string]string{"type": t.Type})
}

// StringField returns a string field of the task payload ("" when absent).
func (t IntentTask) StringField(name string) string {
	return gjson.GetBytes(t.Raw, name).String()
}

// IntField returns an integer field of the task payload (0 when absent).
func (t IntentTask) IntField(name string) int {
	return int(gjson.GetBytes(t.Raw, name).Int())
}

type CanonicalIntent struct {
	IntentID      string       `json:"intentId"`
	Scope         IntentScope  `json:"scope"`
	Tasks         []IntentTask `json:"tasks"`
	Confidence    *float64     `json:"confidence,omitempty"`
	Uncertainties []string     `json:"uncertainties,omitempty"`
	ResponseMode  ResponseMode `json:"responseMode,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var intentKnownFields = map[string]bool{
	"intentId": true, "scope": true, "tasks": true,
	"confidence": true, "uncertainties": true, "responseMode": true,
}

func (ci *CanonicalIntent) UnmarshalJSON(data []byte) error {
	type plain CanonicalIntent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*ci = CanonicalIntent(p)
	extra, err := splitExtra(data, intentKnownFields)
	if err != nil {
		return err
	}
	ci.Extra = extra
	return nil
}

func (ci CanonicalIntent) MarshalJSON() ([]byte, error) {
	type plain CanonicalIntent
	return mergeExtra(plain(ci), ci.Extra)
}

// ParseCanonicalIntent validates and decodes an intent document, then applies
// the documented defaults. The returned value is fully typed and defaulted,
// or the error is a *ParseError.
func ParseCanonicalIntent(raw []byte) (*CanonicalIntent, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, newParseError("intent", "empty segment", trimmed, nil)
	}
	intentSch, _, err := compiledSchemas()
	if err != nil {
		return nil, err
	}
	causes, err := validateAgainst(intentSch, []byte(trimmed))
	if err != nil {
		return nil, newParseError("intent", "invalid json", trimmed, err)
	}
	if len(causes) > 0 {
		return nil, newParseError("intent", "schema validation failed", trimmed, nil, causes...)
	}
	var ci CanonicalIntent
	if err := json.Unmarshal([]byte(trimmed), &ci); err != nil {
		return nil, newParseError("intent", "decode failed", trimmed, err)
	}
	ci.applyDefaults()
	return &ci, nil
}

// applyDefaults fills scope.target and responseMode.
//
// Scope inference prefers the most specific detail actually present and
// bottoms out at document scope; it never invents a section.
func (ci *CanonicalIntent) applyDefaults() {
	if ci.Scope.Target == "" {
		switch {
		case strings.TrimSpace(ci.Scope.SectionID) != "":
			ci.Scope.Target = TargetSection
		case len(ci.Scope.Selection) > 0:
			ci.Scope.Target = TargetSelection
		case ci.Scope.OutlineRange != nil:
			ci.Scope.Target = TargetOutlineRange
		default:
			ci.Scope.Target = TargetDocument
		}
	}
	if ci.ResponseMode == "" {
		if ci.Confidence != nil && *ci.Confidence < previewConfidenceThreshold {
			ci.ResponseMode = ResponseModePreview
		} else {
			ci.ResponseMode = ResponseModeAutoApply
		}
	}
}
