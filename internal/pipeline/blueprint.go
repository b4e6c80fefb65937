package pipeline

import (
	"context"
	"fmt"
	"strings"

	"subweave/internal/logging"
	"subweave/internal/queue"
	"subweave/internal/services"
	"subweave/internal/subtitles"
)

// buildBlueprint runs the three blueprint phases: keyword extraction on
// the fast tier, terminology grounding on the fast tier, and brief
// assembly on the deep tier. Each phase feeds the next.
func (o *Orchestrator) buildBlueprint(ctx context.Context, reporter *Reporter, lines []subtitles.Line, payload queue.Payload) (*Blueprint, error) {
	script := joinLineTexts(lines)
	tone := payload.Tone
	if tone == "" {
		tone = o.settings.DefaultTone
	}
	deepModel := o.settings.DeepModel

	reporter.Stage(ctx, "Blueprint: Extracting keywords")
	var keywords []Keyword
	if err := o.gateway.GenerateStructured(ctx, o.settings.FastModel, keywordExtractionPrompt(script, o.settings.TargetLanguage), &keywords); err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	o.logger.Debug("extracted keywords",
		logging.String(logging.FieldJobID, reporter.JobID()),
		logging.Int("keywords", len(keywords)))

	reporter.Stage(ctx, "Blueprint: Grounding terminology")
	var grounded []GroundedKeyword
	if len(keywords) > 0 {
		if err := o.gateway.GenerateStructured(ctx, o.settings.FastModel, groundingPrompt(keywords, o.settings.TargetLanguage), &grounded); err != nil {
			return nil, fmt.Errorf("ground keywords: %w", err)
		}
	}

	reporter.Stage(ctx, "Blueprint: Assembling translation brief")
	userGlossary := glossaryFromPayload(payload.Glossary)
	var blueprint Blueprint
	if err := o.gateway.GenerateStructured(ctx, deepModel, assemblyPrompt(script, tone, o.settings.TargetLanguage, grounded, userGlossary), &blueprint); err != nil {
		return nil, fmt.Errorf("assemble blueprint: %w", err)
	}
	if blueprint.Glossary == nil {
		return nil, services.Wrap(services.ErrInvalidBlueprint, "pipeline", "assemble_blueprint",
			"AI returned an invalid blueprint", nil)
	}

	enforceUserGlossary(&blueprint, userGlossary)
	return &blueprint, nil
}

// enforceUserGlossary overwrites AI-proposed translations with the
// user-supplied ones and appends any user term the model dropped. User
// terms are authoritative regardless of what assembly produced.
func enforceUserGlossary(blueprint *Blueprint, userGlossary []GlossaryTerm) {
	for _, userTerm := range userGlossary {
		found := false
		for i := range blueprint.Glossary {
			if strings.EqualFold(blueprint.Glossary[i].Term, userTerm.Term) {
				blueprint.Glossary[i].ProposedTranslation = userTerm.ProposedTranslation
				found = true
			}
		}
		if !found {
			blueprint.Glossary = append(blueprint.Glossary, userTerm)
		}
	}
}

func glossaryFromPayload(entries []queue.GlossaryEntry) []GlossaryTerm {
	if len(entries) == 0 {
		return nil
	}
	terms := make([]GlossaryTerm, 0, len(entries))
	for _, entry := range entries {
		terms = append(terms, GlossaryTerm{
			Term:                entry.Term,
			ProposedTranslation: entry.Translation,
			TranslationType:     TypeDirectTranslation,
			Justification:       "User-provided translation.",
		})
	}
	return terms
}

func joinLineTexts(lines []subtitles.Line) string {
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.Text)
	}
	return strings.Join(texts, "\n")
}
