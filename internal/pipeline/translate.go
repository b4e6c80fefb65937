package pipeline

import (
	"context"
	"fmt"
	"strings"

	"subweave/internal/logging"
	"subweave/internal/subtitles"
)

// translateLines runs the batched translation phase: lines are split into
// fixed-size batches, each batch is triaged once, and lines are translated
// strictly in sequence order with per-line memory context.
func (o *Orchestrator) translateLines(ctx context.Context, reporter *Reporter, lines []subtitles.Line, blueprint *Blueprint, tone string, thinkingMode bool) ([]subtitles.TranslatedLine, error) {
	brief := blueprint.Brief()
	batchSize := o.settings.BatchSize
	if batchSize <= 0 {
		batchSize = 15
	}
	batches := (len(lines) + batchSize - 1) / batchSize

	translated := make([]subtitles.TranslatedLine, 0, len(lines))
	for batchIndex := 0; batchIndex < batches; batchIndex++ {
		start := batchIndex * batchSize
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}
		batch := lines[start:end]

		reporter.Stage(ctx, fmt.Sprintf("Translating Batch %d of %d", batchIndex+1, batches))

		tiers, err := o.triageBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		for _, line := range batch {
			priorDialogue, err := o.memory.Query(ctx, reporter.JobID(), line.Text, o.settings.QueryTopK)
			if err != nil {
				return nil, fmt.Errorf("query context for line %d: %w", line.Sequence, err)
			}

			tier := tiers[line.Sequence]
			model := o.modelForTier(tier)
			reasoning := thinkingMode && tier == TierDeep
			output, err := o.gateway.GenerateText(ctx, model, translationPrompt(brief, priorDialogue, tone, o.settings.TargetLanguage, line.Text), reasoning)
			if err != nil {
				return nil, fmt.Errorf("translate line %d: %w", line.Sequence, err)
			}

			translated = append(translated, subtitles.TranslatedLine{
				Line:           line,
				TranslatedText: strings.TrimSpace(output),
			})
		}

		o.logger.Debug("batch translated",
			logging.String(logging.FieldJobID, reporter.JobID()),
			logging.Int("batch", batchIndex+1),
			logging.Int("batches", batches),
			logging.Int("lines", len(batch)))
	}
	return translated, nil
}
