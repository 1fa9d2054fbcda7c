package refine

import (
	"strings"

	"murmur/internal/services"
	"murmur/internal/services/llm"
)

// Candidate is one segment proposal returned by the model.
type Candidate struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// ParseCandidates decodes the model's JSON payload into an ordered proposal
// list. Proposals with empty text are dropped.
func ParseCandidates(content string) ([]Candidate, error) {
	var payload struct {
		Segments []Candidate `json:"segments"`
	}
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrLLM, "refine", "parse candidates",
			"Model response was not valid JSON", err)
	}
	out := make([]Candidate, 0, len(payload.Segments))
	for _, cand := range payload.Segments {
		cand.Text = strings.TrimSpace(cand.Text)
		cand.Translation = strings.TrimSpace(cand.Translation)
		if cand.Text == "" {
			continue
		}
		out = append(out, cand)
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrLLM, "refine", "parse candidates",
			"Model response contained no usable segments", nil)
	}
	return out, nil
}
