package refine

// DefaultAnchorThreshold is the minimum fraction of a proposed segment's
// tokens that must trace back to transcript words before the proposal is
// accepted. Tuned low enough to survive aggressive filler removal, high
// enough to reject hallucinated spans.
const DefaultAnchorThreshold = 0.55

// Options selects which refinement operations run. All enabled operations are
// composed into a single model call.
type Options struct {
	SemanticSegmentation   bool
	ErrorCorrection        bool
	ExpressionOptimization bool
	TranslateTo            string
	AnchorThreshold        float64
}

// Enabled reports whether any refinement operation is requested.
func (o Options) Enabled() bool {
	return o.SemanticSegmentation || o.ErrorCorrection || o.ExpressionOptimization || o.TranslateTo != ""
}

// Threshold returns the anchor threshold, falling back to the default when
// the configured value is out of range.
func (o Options) Threshold() float64 {
	if o.AnchorThreshold <= 0 || o.AnchorThreshold > 1 {
		return DefaultAnchorThreshold
	}
	return o.AnchorThreshold
}
