package stage

import (
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/transcript"
)

// ParseEnvelope parses accumulated stage results and returns the envelope.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseEnvelope(raw string) (transcript.Envelope, error) {
	env, err := transcript.Parse(raw)
	if err != nil {
		return transcript.Envelope{}, services.Wrap(
			services.ErrValidation, "stage", "parse stage results",
			"Stage results missing or invalid; retry the task from the start", err)
	}
	return env, nil
}

// ParseOptions parses the option snapshot recorded at submission.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseOptions(raw string) (queue.Options, error) {
	opts, err := queue.ParseOptions(raw)
	if err != nil {
		return queue.Options{}, services.Wrap(
			services.ErrValidation, "stage", "parse task options",
			"Task options missing or invalid; resubmit the task", err)
	}
	return opts, nil
}
