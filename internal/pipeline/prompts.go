package pipeline

import (
	"fmt"
	"strings"

	"subweave/internal/subtitles"
)

func keywordExtractionPrompt(script, targetLanguage string) string {
	return fmt.Sprintf(`You are preparing a subtitle translation into %s.
Extract proper nouns, recurring terms, slang, and setting-specific vocabulary from the script below.
Respond with only a JSON array of objects: [{"term": "...", "definition": "..."}].
Return [] if nothing stands out.

SCRIPT:
%s`, targetLanguage, script)
}

func groundingPrompt(keywords []Keyword, targetLanguage string) string {
	var terms strings.Builder
	for _, keyword := range keywords {
		fmt.Fprintf(&terms, "- %s: %s\n", keyword.Term, keyword.Definition)
	}
	return fmt.Sprintf(`For each term below, propose exactly 3 candidate translations into %s.
Respond with only a JSON array of objects: [{"term": "...", "translations": ["...", "...", "..."]}].

TERMS:
%s`, targetLanguage, terms.String())
}

func assemblyPrompt(script, tone, targetLanguage string, grounded []GroundedKeyword, userGlossary []GlossaryTerm) string {
	var groundedSection strings.Builder
	for _, keyword := range grounded {
		fmt.Fprintf(&groundedSection, "- %s: %s\n", keyword.Term, strings.Join(keyword.Translations, " / "))
	}
	var glossarySection strings.Builder
	if len(userGlossary) == 0 {
		glossarySection.WriteString("(none)\n")
	}
	for _, term := range userGlossary {
		fmt.Fprintf(&glossarySection, "- %s => %s\n", term.Term, term.ProposedTranslation)
	}
	return fmt.Sprintf(`You are the lead translator adapting the script below into %s with a %q tone.
Produce a translation blueprint as a single JSON object with this shape:
{"summary": "...", "key_points": ["..."], "character_profiles": [{"persona_name": "...", "speaking_style": "...", "voice_consistency_rule": "..."}], "cultural_nuances": ["..."], "glossary": [{"term": "...", "definition": "...", "proposed_translation": "...", "translation_type": "Transliteration|DirectTranslation|Hybrid|CommonUsage|Adaptation", "justification": "...", "alternatives": ["..."]}]}
The "glossary" field is mandatory even when empty.
USER GLOSSARY TERMS ARE FINAL: include each one with its given translation unchanged.

USER GLOSSARY:
%s
GROUNDED TERMINOLOGY:
%s
SCRIPT:
%s`, targetLanguage, tone, glossarySection.String(), groundedSection.String(), script)
}

func triagePrompt(lines []subtitles.Line) string {
	var numbered strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&numbered, "%d: %s\n", line.Sequence, line.Text)
	}
	return fmt.Sprintf(`Classify each subtitle line below by translation difficulty.
Use "deep" for idiom, slang, wordplay, or emotional and cultural nuance; use "fast" for simple declarative lines.
Respond with only a JSON array: [{"line_id": <number>, "tier": "fast"|"deep"}].

LINES:
%s`, numbered.String())
}

func translationPrompt(brief, context, tone, targetLanguage, lineText string) string {
	return fmt.Sprintf(`Translate the single subtitle line below into %s with a %q tone.
Follow the brief exactly, especially the sacrosanct glossary.
Respond with only the translated line, no quotes, no commentary.

BRIEF:
%s
RELEVANT PRIOR DIALOGUE:
%s
LINE:
%s`, targetLanguage, tone, brief, context, lineText)
}
