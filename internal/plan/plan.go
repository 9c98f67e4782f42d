// Package plan maps a document-edit intent (capability toggles) into an
// ordered sequence of atomic primitive steps. It is a pure mapping: identical
// input always yields an identical step sequence, no I/O, no model calls.
package plan

import (
	"errors"
	"strings"
)

var ErrNoCapabilities = errors.New("no capabilities enabled")

// Highlight modes.
const (
	HighlightSentences = "sentences"
	HighlightTerms     = "terms"
	HighlightMixed     = "mixed"
)

const (
	defaultMaxMarks   = 6
	defaultMaxBullets = 4
)

// Rewrite shaping modes; they select which diff behaviors the apply path
// may use (summarize forbids section growth, expand invites it).
const (
	RewriteShapeRewrite   = "rewrite"
	RewriteShapeSummarize = "summarize"
	RewriteShapeExpand    = "expand"
)

type RewriteOptions struct {
	Enabled     bool   `json:"enabled"`
	Tone        string `json:"tone,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Shape       string `json:"shape,omitempty"` // rewrite | summarize | expand
}

type HighlightOptions struct {
	Enabled  bool   `json:"enabled"`
	Mode     string `json:"mode,omitempty"` // sentences | terms | mixed
	MaxMarks int    `json:"max_marks,omitempty"`
}

type SummaryOptions struct {
	Enabled    bool `json:"enabled"`
	MaxBullets int  `json:"max_bullets,omitempty"`
}

// DocEditIntent is the UI-side request shape. Kind is the deprecated
// string-enum form; when set, it is translated into the capability toggles
// at the boundary and the core never sees it again.
type DocEditIntent struct {
	Kind string `json:"kind,omitempty"` // deprecated

	Rewrite   RewriteOptions   `json:"rewrite"`
	Highlight HighlightOptions `json:"highlight"`
	Summary   SummaryOptions   `json:"summary"`
}

// NormalizedIntent is a DocEditIntent with every optional field filled with
// its documented default and the legacy kind resolved away.
type NormalizedIntent struct {
	Rewrite   RewriteOptions   `json:"rewrite"`
	Highlight HighlightOptions `json:"highlight"`
	Summary   SummaryOptions   `json:"summary"`
}

// legacyKinds maps the old string-enum intent kinds onto capability toggles.
var legacyKinds = map[string]NormalizedIntent{
	"rewrite":               {Rewrite: RewriteOptions{Enabled: true}},
	"highlight":             {Highlight: HighlightOptions{Enabled: true}},
	"rewrite_and_highlight": {Rewrite: RewriteOptions{Enabled: true}, Highlight: HighlightOptions{Enabled: true}},
	"summarize":             {Summary: SummaryOptions{Enabled: true}},
	"full_edit": {
		Rewrite:   RewriteOptions{Enabled: true},
		Highlight: HighlightOptions{Enabled: true},
		Summary:   SummaryOptions{Enabled: true},
	},
}

// NormalizeDocEditIntent fills defaults and translates the legacy shape.
// A recognized legacy kind wins over the toggles (old callers never set both).
func NormalizeDocEditIntent(in DocEditIntent) NormalizedIntent {
	out := NormalizedIntent{Rewrite: in.Rewrite, Highlight: in.Highlight, Summary: in.Summary}

	if kind := strings.ToLower(strings.TrimSpace(in.Kind)); kind != "" {
		if mapped, ok := legacyKinds[kind]; ok {
			// Carry detail fields forward; the legacy kind only flips toggles.
			mapped.Rewrite.Tone = in.Rewrite.Tone
			mapped.Rewrite.Instruction = in.Rewrite.Instruction
			if in.Highlight.Mode != "" {
				mapped.Highlight.Mode = in.Highlight.Mode
			}
			mapped.Highlight.MaxMarks = in.Highlight.MaxMarks
			mapped.Summary.MaxBullets = in.Summary.MaxBullets
			out = mapped
		}
	}

	switch out.Rewrite.Shape {
	case RewriteShapeRewrite, RewriteShapeSummarize, RewriteShapeExpand:
	default:
		out.Rewrite.Shape = RewriteShapeRewrite
	}
	if out.Highlight.Mode == "" {
		out.Highlight.Mode = HighlightSentences
	}
	if out.Highlight.MaxMarks <= 0 {
		out.Highlight.MaxMarks = defaultMaxMarks
	}
	if out.Summary.MaxBullets <= 0 {
		out.Summary.MaxBullets = defaultMaxBullets
	}
	return out
}

// StepKind names one atomic primitive.
type StepKind string

const (
	StepRewriteSection     StepKind = "rewrite_section"
	StepHighlightSentences StepKind = "highlight_sentences"
	StepHighlightTerms     StepKind = "highlight_terms"
	StepAppendSummary      StepKind = "append_bullet_summary"
)

type Step struct {
	Kind       StepKind `json:"kind"`
	SectionKey string   `json:"section_key"`

	Tone        string `json:"tone,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Shape       string `json:"shape,omitempty"`
	MaxMarks    int    `json:"max_marks,omitempty"`
	MaxBullets  int    `json:"max_bullets,omitempty"`
}

type Plan struct {
	SectionKey string `json:"section_key"`
	Steps      []Step `json:"steps"`
}

// BuildDocEditPlanForIntent turns a normalized intent into the ordered step
// sequence for one section. Order matters: rewrite runs first (later steps
// read its output), highlight steps follow, and the bullet summary runs last
// because it reads the final section text.
func BuildDocEditPlanForIntent(in NormalizedIntent, sectionKey string) (*Plan, error) {
	if strings.TrimSpace(sectionKey) == "" {
		return nil, errors.New("missing section key")
	}
	if !in.Rewrite.Enabled && !in.Highlight.Enabled && !in.Summary.Enabled {
		return nil, ErrNoCapabilities
	}

	p := &Plan{SectionKey: sectionKey}

	if in.Rewrite.Enabled {
		p.Steps = append(p.Steps, Step{
			Kind:        StepRewriteSection,
			SectionKey:  sectionKey,
			Tone:        in.Rewrite.Tone,
			Instruction: in.Rewrite.Instruction,
			Shape:       in.Rewrite.Shape,
		})
	}

	if in.Highlight.Enabled {
		switch in.Highlight.Mode {
		case HighlightTerms:
			p.Steps = append(p.Steps, Step{Kind: StepHighlightTerms, SectionKey: sectionKey, MaxMarks: in.Highlight.MaxMarks})
		case HighlightMixed:
			// Both steps run, sentences first; each gets a reduced cap so the
			// combined pass cannot over-mark the section.
			half := in.Highlight.MaxMarks / 2
			if half < 1 {
				half = 1
			}
			rest := in.Highlight.MaxMarks - half
			if rest < 1 {
				rest = 1
			}
			p.Steps = append(p.Steps,
				Step{Kind: StepHighlightSentences, SectionKey: sectionKey, MaxMarks: half},
				Step{Kind: StepHighlightTerms, SectionKey: sectionKey, MaxMarks: rest},
			)
		default:
			p.Steps = append(p.Steps, Step{Kind: StepHighlightSentences, SectionKey: sectionKey, MaxMarks: in.Highlight.MaxMarks})
		}
	}

	if in.Summary.Enabled {
		p.Steps = append(p.Steps, Step{Kind: StepAppendSummary, SectionKey: sectionKey, MaxBullets: in.Summary.MaxBullets})
	}

	return p, nil
}
