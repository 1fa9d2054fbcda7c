package refine

import (
	"context"
	"log/slog"

	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/services/llm"
	"murmur/internal/transcript"
)

// Refiner drives one refinement round trip: serialize the transcript, ask the
// model for a refined segmentation, and re-anchor the response onto the
// original word timeline.
type Refiner struct {
	client *llm.Client
	logger *slog.Logger
}

// NewRefiner wires a refiner around the shared LLM client.
func NewRefiner(client *llm.Client, logger *slog.Logger) *Refiner {
	return &Refiner{client: client, logger: logging.NewComponentLogger(logger, "refine")}
}

// Refine sends segments through the model and reconciles the proposals with
// the words that produced them. A returned error means refinement yielded
// nothing usable; callers keep the input segments in that case.
func (r *Refiner) Refine(ctx context.Context, segments []transcript.Segment, opts Options) (Result, error) {
	if len(segments) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "refine", "refine", "No segments to refine", nil)
	}
	if !opts.Enabled() {
		return Result{}, services.Wrap(services.ErrValidation, "refine", "refine", "No refinement operation requested", nil)
	}

	content, err := r.client.CompleteJSON(ctx, BuildInstruction(opts), SerializeTranscript(segments))
	if err != nil {
		return Result{}, services.Wrap(services.ErrLLM, "refine", "complete", "Model request failed", err)
	}

	candidates, err := ParseCandidates(content)
	if err != nil {
		return Result{}, err
	}

	result, err := Reanchor(segments, candidates, opts.Threshold())
	if err != nil {
		return Result{}, err
	}

	r.logger.Debug("refinement anchored",
		logging.Int("candidates", len(candidates)),
		logging.Int("anchored", result.Anchored),
		logging.Int("discarded", result.Discarded),
		logging.Int("partial", result.Partial))
	return result, nil
}
