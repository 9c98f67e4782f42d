// Package prompt renders the messages for one capability step. The response
// contract it dictates is the three-block format the schema layer parses.
package prompt

import (
	"fmt"
	"strings"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/llm"
	"github.com/docfold/docfold-agent/internal/plan"
)

const systemPrompt = `You are a document editing assistant operating on one section of a structured document.

You MUST answer in plain text with exactly three blocks in this order, no markdown fencing:

[assistant]
One or two sentences for the user describing what you did.
[intent]
A single JSON object matching the CanonicalIntent contract:
{"intentId": "<echo the provided intent id>", "scope": {"target": "section", "sectionId": "<section id>"}, "tasks": [{"type": "<task type>"}], "confidence": <0..1>, "uncertainties": []}
[docops]
A single JSON object matching the DocOpsPlan contract, version "1.0":
{"version": "1.0", "intentId": "<same intent id>", "ops": [...]}

Every op carries {"type": ..., "scope": {"sectionId": "<section id>"}, "payload": {...}}.
Op types:
- replace_range: payload.paragraphs is an array of {"index": <original paragraph index>, "text": "<full new text>"} covering EVERY paragraph you keep, unchanged ones included.
- apply_mark: payload {"paragraphIndex": i, "startOffset": s, "endOffset": e, "markType": "highlight"} with offsets in runes, endOffset >= startOffset, inside a single paragraph.
- insert_after_section: payload.paragraphs is an array of {"index": i, "text": ...} to append after the section content.
- insert_paragraph_after: payload {"afterIndex": i, "text": ...}.
- add_comment: payload {"text": ...}.

Never invent paragraph indices outside the listed range. Do not wrap JSON in code fences.`

// BuildStepMessages renders the system and user messages for one step.
// priorIntentJSON, when non-empty, is the serialized intent returned by an
// earlier step of the same run (highlight steps reuse the rewrite intent
// instead of re-deriving what matters).
func BuildStepMessages(step plan.Step, sc *docmodel.SectionContext, intentID, priorIntentJSON string) []llm.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Intent id: %s\n", intentID)
	fmt.Fprintf(&b, "Section id: %s\n", sc.SectionKey)
	fmt.Fprintf(&b, "Section title: %s\n\n", sc.Title)

	b.WriteString("Paragraphs (index: text):\n")
	for i, p := range sc.OwnParagraphs {
		fmt.Fprintf(&b, "%d: %s\n", i, p.Text)
	}
	if len(sc.ChildSections) > 0 {
		b.WriteString("\nChild sections (context only, do not edit):\n")
		for _, c := range sc.ChildSections {
			fmt.Fprintf(&b, "- %s\n", c.Title)
		}
	}
	b.WriteString("\n")

	switch step.Kind {
	case plan.StepRewriteSection:
		b.WriteString("Task: rewrite every paragraph of this section for clarity and flow.\n")
		if strings.TrimSpace(step.Tone) != "" {
			fmt.Fprintf(&b, "Tone: %s\n", step.Tone)
		}
		if strings.TrimSpace(step.Instruction) != "" {
			fmt.Fprintf(&b, "Additional instruction: %s\n", step.Instruction)
		}
		b.WriteString("Emit one replace_range op whose paragraphs array has one entry per original paragraph, same indices, same count.\n")

	case plan.StepHighlightSentences:
		fmt.Fprintf(&b, "Task: mark the most important sentences of this section. Emit at most %d apply_mark ops with markType \"highlight\".\n", step.MaxMarks)

	case plan.StepHighlightTerms:
		fmt.Fprintf(&b, "Task: mark the key terms of this section. Emit at most %d apply_mark ops with markType \"bold\".\n", step.MaxMarks)

	case plan.StepAppendSummary:
		fmt.Fprintf(&b, "Task: summarize this section as at most %d short bullet points. Emit one insert_after_section op whose paragraphs array holds one entry per bullet, indices starting at %d.\n",
			step.MaxBullets, len(sc.OwnParagraphs))
	}

	if strings.TrimSpace(priorIntentJSON) != "" {
		b.WriteString("\nIntent from the previous step of this edit (reuse its focus, do not re-derive):\n")
		b.WriteString(priorIntentJSON)
		b.WriteString("\n")
	}

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
