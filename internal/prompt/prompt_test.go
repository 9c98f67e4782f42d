package prompt

import (
	"strings"
	"testing"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/plan"
)

func sampleContext() *docmodel.SectionContext {
	return &docmodel.SectionContext{
		SectionKey: "nk_sec1",
		Title:      "Findings",
		OwnParagraphs: []docmodel.ParagraphInfo{
			{NodeKey: "nk_p0", Text: "First finding."},
			{NodeKey: "nk_p1", Text: "Second finding."},
		},
		ChildSections: []docmodel.SectionRef{{NodeKey: "nk_c1", Title: "Details", Level: 2}},
	}
}

func TestBuildStepMessages_Shape(t *testing.T) {
	t.Parallel()

	msgs := BuildStepMessages(plan.Step{Kind: plan.StepRewriteSection, SectionKey: "nk_sec1"}, sampleContext(), "in_42", "")
	if len(msgs) != 2 {
		t.Fatalf("messages=%d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("roles=%q,%q", msgs[0].Role, msgs[1].Role)
	}
	for _, marker := range []string{"[assistant]", "[intent]", "[docops]", `"1.0"`} {
		if !strings.Contains(msgs[0].Content, marker) {
			t.Fatalf("system prompt missing %q", marker)
		}
	}
	user := msgs[1].Content
	for _, want := range []string{"in_42", "nk_sec1", "Findings", "0: First finding.", "1: Second finding.", "Details"} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestBuildStepMessages_TaskText(t *testing.T) {
	t.Parallel()

	sc := sampleContext()
	cases := []struct {
		step plan.Step
		want string
	}{
		{plan.Step{Kind: plan.StepRewriteSection, Tone: "formal", Instruction: "keep dates"}, "Tone: formal"},
		{plan.Step{Kind: plan.StepRewriteSection, Instruction: "keep dates"}, "keep dates"},
		{plan.Step{Kind: plan.StepHighlightSentences, MaxMarks: 3}, "at most 3 apply_mark"},
		{plan.Step{Kind: plan.StepHighlightTerms, MaxMarks: 2}, `markType "bold"`},
		{plan.Step{Kind: plan.StepAppendSummary, MaxBullets: 4}, "at most 4 short bullet"},
	}
	for _, tc := range cases {
		msgs := BuildStepMessages(tc.step, sc, "in_1", "")
		if !strings.Contains(msgs[1].Content, tc.want) {
			t.Fatalf("step %s: prompt missing %q:\n%s", tc.step.Kind, tc.want, msgs[1].Content)
		}
	}
}

func TestBuildStepMessages_SummaryIndicesStartAfterOriginals(t *testing.T) {
	t.Parallel()

	msgs := BuildStepMessages(plan.Step{Kind: plan.StepAppendSummary, MaxBullets: 3}, sampleContext(), "in_1", "")
	if !strings.Contains(msgs[1].Content, "indices starting at 2") {
		t.Fatalf("prompt:\n%s", msgs[1].Content)
	}
}

func TestBuildStepMessages_PriorIntent(t *testing.T) {
	t.Parallel()

	prior := `{"intentId":"in_1","tasks":[{"type":"rewrite_section"}]}`
	msgs := BuildStepMessages(plan.Step{Kind: plan.StepHighlightSentences, MaxMarks: 2}, sampleContext(), "in_1", prior)
	if !strings.Contains(msgs[1].Content, prior) {
		t.Fatalf("prior intent not forwarded:\n%s", msgs[1].Content)
	}

	without := BuildStepMessages(plan.Step{Kind: plan.StepHighlightSentences, MaxMarks: 2}, sampleContext(), "in_1", "")
	if strings.Contains(without[1].Content, "previous step") {
		t.Fatalf("prior section rendered with no prior intent")
	}
}
