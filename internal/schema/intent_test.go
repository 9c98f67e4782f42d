package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCanonicalIntent_Defaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		wantMode ResponseMode
	}{
		{
			name:     "low confidence defaults to preview",
			raw:      `{"intentId": "in_1", "tasks": [{"type": "rewrite_section"}], "confidence": 0.3}`,
			wantMode: ResponseModePreview,
		},
		{
			name:     "high confidence defaults to auto_apply",
			raw:      `{"intentId": "in_1", "tasks": [{"type": "rewrite_section"}], "confidence": 0.9}`,
			wantMode: ResponseModeAutoApply,
		},
		{
			name:     "absent confidence defaults to auto_apply",
			raw:      `{"intentId": "in_1", "tasks": [{"type": "rewrite_section"}]}`,
			wantMode: ResponseModeAutoApply,
		},
		{
			name:     "explicit mode wins over confidence",
			raw:      `{"intentId": "in_1", "tasks": [{"type": "rewrite_section"}], "confidence": 0.1, "responseMode": "auto_apply"}`,
			wantMode: ResponseModeAutoApply,
		},
	}
	for _, tc := range cases {
		ci, err := ParseCanonicalIntent([]byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: ParseCanonicalIntent: %v", tc.name, err)
		}
		if ci.ResponseMode != tc.wantMode {
			t.Fatalf("%s: responseMode=%q, want %q", tc.name, ci.ResponseMode, tc.wantMode)
		}
	}
}

func TestParseCanonicalIntent_ScopeInference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		scope string
		want  ScopeTarget
	}{
		{"sectionId wins", `{"sectionId": "nk_1", "selection": {"from": 1}}`, TargetSection},
		{"selection next", `{"selection": {"from": 1, "to": 5}}`, TargetSelection},
		{"outline range next", `{"outlineRange": {"start": 0, "end": 2}}`, TargetOutlineRange},
		{"document bottom", `{}`, TargetDocument},
		{"explicit target kept", `{"target": "document", "sectionId": "nk_1"}`, TargetDocument},
	}
	for _, tc := range cases {
		raw := `{"intentId": "in_1", "tasks": [{"type": "t"}], "scope": ` + tc.scope + `}`
		ci, err := ParseCanonicalIntent([]byte(raw))
		if err != nil {
			t.Fatalf("%s: ParseCanonicalIntent: %v", tc.name, err)
		}
		if ci.Scope.Target != tc.want {
			t.Fatalf("%s: target=%q, want %q", tc.name, ci.Scope.Target, tc.want)
		}
	}
}

func TestParseCanonicalIntent_SchemaRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"missing intentId", `{"tasks": [{"type": "t"}]}`},
		{"empty tasks", `{"intentId": "in_1", "tasks": []}`},
		{"task without type", `{"intentId": "in_1", "tasks": [{}]}`},
		{"confidence above 1", `{"intentId": "in_1", "tasks": [{"type": "t"}], "confidence": 1.5}`},
		{"bad responseMode", `{"intentId": "in_1", "tasks": [{"type": "t"}], "responseMode": "yolo"}`},
		{"not json", `nope`},
	}
	for _, tc := range cases {
		_, err := ParseCanonicalIntent([]byte(tc.raw))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: err=%v, want *ParseError", tc.name, err)
		}
	}
}

func TestCanonicalIntent_PreservesUnknownFields(t *testing.T) {
	t.Parallel()

	raw := `{"intentId": "in_1", "tasks": [{"type": "rewrite_section", "tone": "formal", "futureKnob": 3}], "scope": {"sectionId": "nk_1", "vendorHint": "x"}, "experimental": {"a": 1}}`
	ci, err := ParseCanonicalIntent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseCanonicalIntent: %v", err)
	}

	if _, ok := ci.Extra["experimental"]; !ok {
		t.Fatalf("top-level unknown field lost: %v", ci.Extra)
	}
	if _, ok := ci.Scope.Extra["vendorHint"]; !ok {
		t.Fatalf("scope unknown field lost: %v", ci.Scope.Extra)
	}
	if got := ci.Tasks[0].StringField("tone"); got != "formal" {
		t.Fatalf("task tone=%q", got)
	}
	if got := ci.Tasks[0].IntField("futureKnob"); got != 3 {
		t.Fatalf("task futureKnob=%d", got)
	}

	out, err := json.Marshal(ci)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Parsing our own output must be lossless and stable.
	ci2, err := ParseCanonicalIntent(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	out2, err := json.Marshal(ci2)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if string(out) != string(out2) {
		t.Fatalf("marshal not stable:\n%s\n%s", out, out2)
	}
}
