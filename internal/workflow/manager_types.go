package workflow

import (
	"murmur/internal/queue"
	"murmur/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Decoder     stage.Handler
	Transcriber stage.Handler
	Aligner     stage.Handler
	Diarizer    stage.Handler
	Refiner     stage.Handler
	Encoder     stage.Handler
}

type pipelineStage struct {
	name    string
	status  queue.Status
	handler stage.Handler
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Handlers left nil are dropped from the sequence; the remaining stages still
// run in pipeline order.
func (m *Manager) ConfigureStages(set StageSet) {
	candidates := []pipelineStage{
		{name: "decoder", status: queue.StatusDecoding, handler: set.Decoder},
		{name: "transcriber", status: queue.StatusTranscribing, handler: set.Transcriber},
		{name: "aligner", status: queue.StatusAligning, handler: set.Aligner},
		{name: "diarizer", status: queue.StatusDiarizing, handler: set.Diarizer},
		{name: "refiner", status: queue.StatusRefining, handler: set.Refiner},
		{name: "encoder", status: queue.StatusEncoding, handler: set.Encoder},
	}

	stages := make([]pipelineStage, 0, len(candidates))
	for _, stg := range candidates {
		if stg.handler == nil {
			continue
		}
		stages = append(stages, stg)
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

func (m *Manager) configuredStages() []pipelineStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages
}
