package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetLimit = 240

// ParseError is the typed failure for any protocol-level problem with LLM
// output: missing/out-of-order markers, bad JSON, schema violations, or an
// intent/plan desync. It always carries a snippet of the raw input so the
// failure can be diagnosed from logs alone.
type ParseError struct {
	// Doc names the wire document that failed: "response", "intent" or "docops".
	Doc string
	Msg string
	// RawSnippet is a bounded prefix of the offending raw text.
	RawSnippet string
	// Causes holds the structured validation report, when there is one.
	Causes []string
	// Err is the underlying cause (e.g. a json syntax error), when there is one.
	Err error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse %s: %s", e.Doc, e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Causes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Causes, "; "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) <= snippetLimit {
		return raw
	}
	// Back the cut up to a rune boundary so the snippet stays valid UTF-8.
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut] + "..."
}

func newParseError(doc, msg, raw string, err error, causes ...string) *ParseError {
	return &ParseError{Doc: doc, Msg: msg, RawSnippet: snippet(raw), Err: err, Causes: causes}
}
