package queue

import (
	"context"

	"murmur/internal/transcript"
)

// Envelope decodes the task's persisted stage results. A task that has not
// completed any stage yet yields an empty envelope.
func (t *Task) Envelope() (transcript.Envelope, error) {
	return transcript.Parse(t.StageResults)
}

// PersistEnvelope encodes env and writes the result to task via store.Update.
// On success the updated task fields (including any store-generated values)
// are written back through the task pointer. Returns a non-nil error when
// encoding or persistence fails; callers decide how to log the result.
func PersistEnvelope(ctx context.Context, store *Store, task *Task, env transcript.Envelope) error {
	encoded, err := env.Marshal()
	if err != nil {
		return err
	}
	copy := *task
	copy.StageResults = encoded
	if store != nil {
		if err := store.Update(ctx, &copy); err != nil {
			return err
		}
	}
	*task = copy
	return nil
}
