package pipeline

// TranslationType classifies how a glossary term maps into the target
// language.
type TranslationType string

const (
	TypeTransliteration   TranslationType = "Transliteration"
	TypeDirectTranslation TranslationType = "DirectTranslation"
	TypeHybrid            TranslationType = "Hybrid"
	TypeCommonUsage       TranslationType = "CommonUsage"
	TypeAdaptation        TranslationType = "Adaptation"
)

// GlossaryTerm is one entry in the blueprint's authoritative glossary.
// User-supplied terms are sacrosanct: their proposed translation always
// wins over anything the model suggests.
type GlossaryTerm struct {
	Term                string          `json:"term"`
	Definition          string          `json:"definition,omitempty"`
	ProposedTranslation string          `json:"proposed_translation"`
	TranslationType     TranslationType `json:"translation_type,omitempty"`
	Justification       string          `json:"justification,omitempty"`
	Alternatives        []string        `json:"alternatives,omitempty"`
}

// CharacterProfile captures a speaker's voice so every line keeps a
// consistent register.
type CharacterProfile struct {
	PersonaName          string `json:"persona_name"`
	SpeakingStyle        string `json:"speaking_style"`
	VoiceConsistencyRule string `json:"voice_consistency_rule"`
}

// Blueprint is the per-job translation brief assembled once before any
// line is translated. Immutable after assembly.
type Blueprint struct {
	Summary           string             `json:"summary"`
	KeyPoints         []string           `json:"key_points,omitempty"`
	CharacterProfiles []CharacterProfile `json:"character_profiles,omitempty"`
	CulturalNuances   []string           `json:"cultural_nuances,omitempty"`
	Glossary          []GlossaryTerm     `json:"glossary"`
}

// Keyword is a term extracted from the script during blueprint phase 1.
type Keyword struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// GroundedKeyword pairs an extracted term with candidate translations
// produced during blueprint phase 2.
type GroundedKeyword struct {
	Term         string   `json:"term"`
	Translations []string `json:"translations"`
}

// Tier names a model quality tier for a single line.
type Tier string

const (
	TierFast Tier = "fast"
	TierDeep Tier = "deep"
)

// TriageClassification assigns a tier to one line within a batch. Lines
// the model leaves unclassified default to the fast tier.
type TriageClassification struct {
	LineID int  `json:"line_id"`
	Tier   Tier `json:"tier"`
}
