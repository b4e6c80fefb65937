package pipeline

import (
	"context"
	"fmt"

	"subweave/internal/subtitles"
)

// triageBatch classifies every line in a batch into a model tier with one
// fast-tier call. Lines missing from the model's answer, or carrying an
// unknown tier value, default to fast.
func (o *Orchestrator) triageBatch(ctx context.Context, lines []subtitles.Line) (map[int]Tier, error) {
	var classifications []TriageClassification
	if err := o.gateway.GenerateStructured(ctx, o.settings.FastModel, triagePrompt(lines), &classifications); err != nil {
		return nil, fmt.Errorf("triage batch: %w", err)
	}

	tiers := make(map[int]Tier, len(lines))
	for _, line := range lines {
		tiers[line.Sequence] = TierFast
	}
	for _, classification := range classifications {
		if _, ok := tiers[classification.LineID]; !ok {
			continue
		}
		if classification.Tier == TierDeep {
			tiers[classification.LineID] = TierDeep
		}
	}
	return tiers, nil
}

// modelForTier maps a tier to a configured model identifier. The assigned
// tier is always honored.
func (o *Orchestrator) modelForTier(tier Tier) string {
	if tier == TierDeep {
		return o.settings.DeepModel
	}
	return o.settings.FastModel
}
