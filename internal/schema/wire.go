package schema

// The LLM answers in plain text with three ordered blocks, no markdown
// fencing:
//
//	[assistant]
//	<short note for the user>
//	[intent]
//	<CanonicalIntent JSON>
//	[docops]
//	<DocOpsPlan JSON>
//
// Markers match case-insensitively. A missing or out-of-order marker, an
// empty JSON segment, or an intentId mismatch between the two JSON documents
// is a hard protocol failure for the whole response.

import (
	"strings"
)

const (
	markerAssistant = "[assistant]"
	markerIntent    = "[intent]"
	markerDocOps    = "[docops]"
)

// AssistantResponse is the fully parsed three-block LLM response.
type AssistantResponse struct {
	AssistantText string
	Intent        *CanonicalIntent
	Plan          *DocOpsPlan
}

// asciiLower folds only A-Z so every byte offset into the result is valid in
// the input. Unicode-aware lowercasing can change byte lengths (İ, K) and the
// markers are plain ASCII anyway.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ParseAssistantResponse parses the raw completion text.
func ParseAssistantResponse(raw string) (*AssistantResponse, error) {
	lower := asciiLower(raw)

	aIdx := strings.Index(lower, markerAssistant)
	iIdx := strings.Index(lower, markerIntent)
	dIdx := strings.Index(lower, markerDocOps)

	switch {
	case aIdx < 0:
		return nil, newParseError("response", "missing [assistant] marker", raw, nil)
	case iIdx < 0:
		return nil, newParseError("response", "missing [intent] marker", raw, nil)
	case dIdx < 0:
		return nil, newParseError("response", "missing [docops] marker", raw, nil)
	case !(aIdx < iIdx && iIdx < dIdx):
		return nil, newParseError("response", "markers out of order (want [assistant], [intent], [docops])", raw, nil)
	}

	assistantText := strings.TrimSpace(raw[aIdx+len(markerAssistant) : iIdx])
	intentSeg := strings.TrimSpace(raw[iIdx+len(markerIntent) : dIdx])
	docopsSeg := strings.TrimSpace(raw[dIdx+len(markerDocOps):])

	intent, err := ParseCanonicalIntent([]byte(intentSeg))
	if err != nil {
		return nil, err
	}
	plan, err := ParseDocOpsPlan([]byte(docopsSeg))
	if err != nil {
		return nil, err
	}

	// A mismatched intentId means the model answered two different requests
	// in one response; nothing downstream is safe to trust.
	if plan.IntentID != "" && intent.IntentID != "" && plan.IntentID != intent.IntentID {
		return nil, newParseError("response",
			"intentId desync between intent ("+intent.IntentID+") and docops ("+plan.IntentID+")", raw, nil)
	}

	return &AssistantResponse{
		AssistantText: assistantText,
		Intent:        intent,
		Plan:          plan,
	}, nil
}
