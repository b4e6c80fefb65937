package pipeline

import (
	"fmt"
	"strings"
)

// Brief serializes the blueprint to the flat text artifact passed to every
// per-line translation call. Section order is fixed so the brief is
// byte-identical across calls for the same job; empty optional sections
// are omitted.
func (b *Blueprint) Brief() string {
	var sb strings.Builder

	sb.WriteString("== PLOT AND THEME ==\n")
	sb.WriteString(strings.TrimSpace(b.Summary))
	sb.WriteString("\n")
	for _, point := range b.KeyPoints {
		fmt.Fprintf(&sb, "- %s\n", point)
	}

	if len(b.CharacterProfiles) > 0 {
		sb.WriteString("\n== CHARACTER VOICES ==\n")
		for _, profile := range b.CharacterProfiles {
			fmt.Fprintf(&sb, "%s: %s", profile.PersonaName, profile.SpeakingStyle)
			if profile.VoiceConsistencyRule != "" {
				fmt.Fprintf(&sb, " (rule: %s)", profile.VoiceConsistencyRule)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n== SACROSANCT GLOSSARY ==\n")
	if len(b.Glossary) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, term := range b.Glossary {
		fmt.Fprintf(&sb, "%s => %s", term.Term, term.ProposedTranslation)
		if term.TranslationType != "" {
			fmt.Fprintf(&sb, " [%s]", term.TranslationType)
		}
		if term.Justification != "" {
			fmt.Fprintf(&sb, ": %s", term.Justification)
		}
		sb.WriteString("\n")
	}

	if len(b.CulturalNuances) > 0 {
		sb.WriteString("\n== CULTURAL NUANCES ==\n")
		for _, nuance := range b.CulturalNuances {
			fmt.Fprintf(&sb, "- %s\n", nuance)
		}
	}

	return sb.String()
}
