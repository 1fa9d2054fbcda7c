package refine

import (
	"fmt"
	"strconv"
	"strings"

	"murmur/internal/language"
	"murmur/internal/transcript"
)

// instructionHeader opens every refinement prompt. Keep prompt text
// centralized here so it is easy to tweak without hunting through call sites.
const instructionHeader = `You are an assistant that refines machine-generated speech transcripts.

You receive a numbered list of transcript segments, possibly prefixed with speaker labels in brackets. Apply the following operations:`

const instructionRules = `Rules:

- Never add information that is not present in the transcript.

- Keep the original content order and cover the entire transcript from the first segment to the last.

- Do not include speaker labels or segment numbers in the text you return.

- Keep the "text" field in the same language as the transcript.`

// BuildInstruction composes the system prompt for the enabled operations.
func BuildInstruction(opts Options) string {
	var ops []string
	if opts.SemanticSegmentation {
		ops = append(ops, `- Re-split the transcript into segments that each carry one complete thought. Split where sentences end and where the speaker changes; merge fragments that belong together.`)
	}
	if opts.ErrorCorrection {
		ops = append(ops, `- Fix obvious recognition errors (wrong homophones, broken words, missing punctuation). Only correct what is clearly wrong and keep everything else verbatim.`)
	}
	if opts.ExpressionOptimization {
		ops = append(ops, `- Smooth fillers and false starts (repeated words, hesitation sounds) so each segment reads naturally, without changing its meaning.`)
	}

	schema := `You must respond ONLY with a JSON object like: {"segments": [{"text": "segment text"}]}`
	if opts.TranslateTo != "" {
		ops = append(ops, fmt.Sprintf(`- Translate each segment into %s and put the translation in the "translation" field. The "text" field always stays in the source language.`, language.DisplayName(opts.TranslateTo)))
		schema = `You must respond ONLY with a JSON object like: {"segments": [{"text": "segment text", "translation": "translated text"}]}`
	}

	var b strings.Builder
	b.WriteString(instructionHeader)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(ops, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(instructionRules)
	b.WriteString("\n\n")
	b.WriteString(schema)
	b.WriteString("\n\nNow refine this transcript:")
	return b.String()
}

// SerializeTranscript renders segments as the numbered list sent to the model.
func SerializeTranscript(segments []transcript.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		if seg.Speaker != "" {
			b.WriteString("[")
			b.WriteString(seg.Speaker)
			b.WriteString("] ")
		}
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteByte('\n')
	}
	return b.String()
}
