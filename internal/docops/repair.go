package docops

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/schema"
	"github.com/tidwall/gjson"
)

// Input type classification recorded in RepairDetails.
const (
	RepairInputArray   = "array"
	RepairInputInvalid = "invalid"
)

type RepairDetails struct {
	InputType       string `json:"input_type"`
	OriginalCount   int    `json:"original_count"`
	TargetCount     int    `json:"target_count"`
	ValidNewCount   int    `json:"valid_new_count"`
	FallbackIndices []int  `json:"fallback_indices,omitempty"`
	DroppedIndices  []int  `json:"dropped_indices,omitempty"`
}

type RepairResult struct {
	Paragraphs  []schema.LlmParagraph `json:"paragraphs"`
	WasRepaired bool                  `json:"was_repaired"`
	Details     RepairDetails         `json:"details"`
}

type RepairOptions struct {
	// AllowGrowth keeps valid entries with index >= originalCount (expand
	// mode). Without it the output length is exactly originalCount.
	AllowGrowth bool
	Logger      *slog.Logger
}

// RepairSectionParagraphs reconciles a possibly malformed LLM paragraph
// payload against the original section paragraphs. The output shape is
// unconditionally guaranteed: position i of the result always holds either
// the valid proposed text for index i or the original text at i, and the
// result length equals the original count unless growth is allowed.
//
// Repair always runs; WasRepaired only drives whether the caller surfaces a
// diagnostic.
func RepairSectionParagraphs(paragraphs []docmodel.ParagraphInfo, rawProposed json.RawMessage, opts RepairOptions) RepairResult {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	originalCount := len(paragraphs)

	res := RepairResult{
		Details: RepairDetails{
			OriginalCount: originalCount,
			TargetCount:   originalCount,
		},
	}

	parsed := gjson.ParseBytes(rawProposed)
	if !parsed.IsArray() {
		// Not an array at all: every output paragraph falls back to the
		// original text.
		res.Details.InputType = RepairInputInvalid
		for i := 0; i < originalCount; i++ {
			res.Paragraphs = append(res.Paragraphs, schema.LlmParagraph{Index: i, Text: paragraphs[i].Text})
			res.Details.FallbackIndices = append(res.Details.FallbackIndices, i)
		}
		res.WasRepaired = true
		log.Warn("repair: proposed paragraphs not an array, falling back to originals",
			"original_count", originalCount)
		return res
	}

	res.Details.InputType = RepairInputArray
	entries := parsed.Array()

	upperBound := originalCount
	if opts.AllowGrowth {
		upperBound = originalCount + len(entries)
	}

	byIndex := map[int]string{}
	for j, e := range entries {
		idx := e.Get("index")
		text := strings.TrimSpace(e.Get("text").String())
		validIndex := idx.Exists() && idx.Type == gjson.Number &&
			float64(idx.Int()) == idx.Float() && idx.Int() >= 0 && int(idx.Int()) < upperBound
		if !validIndex || text == "" {
			res.Details.DroppedIndices = append(res.Details.DroppedIndices, j)
			log.Warn("repair: dropping invalid proposed entry",
				"entry", j, "index_valid", validIndex, "text_empty", text == "")
			continue
		}
		// Untrimmed text is kept; trimming was only the emptiness probe.
		byIndex[int(idx.Int())] = e.Get("text").String()
	}
	res.Details.ValidNewCount = len(byIndex)

	for i := 0; i < originalCount; i++ {
		if text, ok := byIndex[i]; ok {
			res.Paragraphs = append(res.Paragraphs, schema.LlmParagraph{Index: i, Text: text})
			continue
		}
		res.Paragraphs = append(res.Paragraphs, schema.LlmParagraph{Index: i, Text: paragraphs[i].Text})
		res.Details.FallbackIndices = append(res.Details.FallbackIndices, i)
	}

	if opts.AllowGrowth {
		var extra []int
		for idx := range byIndex {
			if idx >= originalCount {
				extra = append(extra, idx)
			}
		}
		sort.Ints(extra)
		// Re-index the tail densely: growth entries become contiguous
		// positions right after the originals regardless of the sparse
		// indices the model used.
		for _, idx := range extra {
			res.Paragraphs = append(res.Paragraphs, schema.LlmParagraph{
				Index: len(res.Paragraphs),
				Text:  byIndex[idx],
			})
		}
		res.Details.TargetCount = len(res.Paragraphs)
	}

	// In growth mode a longer input is the expected case, so length mismatch
	// is judged against the produced shape instead of the original count.
	lengthMismatch := len(entries) != originalCount
	if opts.AllowGrowth {
		lengthMismatch = len(entries) != res.Details.TargetCount
	}
	res.WasRepaired = lengthMismatch ||
		len(res.Details.FallbackIndices) > 0 ||
		len(res.Details.DroppedIndices) > 0
	return res
}
