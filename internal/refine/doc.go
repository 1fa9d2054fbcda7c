// Package refine sends merged transcripts to the LLM for semantic
// re-segmentation, error correction, expression optimization, and optional
// translation, then reconciles the model's answer with the transcript.
//
// Model output is advisory. The model proposes segment texts in order, and
// every proposal is re-anchored onto the original word timestamps by matching
// its normalized tokens against the word token stream (longest common
// subsequence within a forward window). Segment boundaries always land on
// original word times; a proposal whose tokens cannot be traced back to the
// words is discarded and its span falls back to the pre-refinement
// segmentation, flagged refinement_partial. When the model cannot be reached
// at all the caller keeps the pre-refinement segments and flags the task
// refinement_degraded instead of failing it.
package refine
