package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"subweave/internal/bus"
	"subweave/internal/config"
	"subweave/internal/logging"
	"subweave/internal/queue"
	"subweave/internal/services"
	"subweave/internal/subtitles"
)

// Gateway is the AI capability surface the pipeline depends on. The
// reasoning flag asks the provider for extended reasoning on that call;
// providers without reasoning support ignore it.
type Gateway interface {
	GenerateStructured(ctx context.Context, model, prompt string, target any) error
	GenerateText(ctx context.Context, model, prompt string, reasoning bool) (string, error)
}

// ContextMemory is the per-job vector memory the pipeline indexes, queries
// and purges.
type ContextMemory interface {
	Index(ctx context.Context, jobID string, lines []subtitles.Line) error
	Query(ctx context.Context, jobID, text string, topK int) (string, error)
	Purge(ctx context.Context, jobID string) error
}

// Settings carries the pipeline's tuning knobs from configuration.
type Settings struct {
	FastModel      string
	DeepModel      string
	BatchSize      int
	QueryTopK      int
	DefaultTone    string
	TargetLanguage string
}

// SettingsFromConfig derives pipeline settings from the loaded config. The
// configured language tag is resolved to its English display name so
// prompts read "into Korean" rather than "into ko".
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FastModel:      cfg.AI.FastModel,
		DeepModel:      cfg.AI.DeepModel,
		BatchSize:      cfg.Translation.BatchSize,
		QueryTopK:      cfg.Memory.QueryTopK,
		DefaultTone:    cfg.Translation.DefaultTone,
		TargetLanguage: languageName(cfg.Translation.TargetLanguage),
	}
}

func languageName(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(parsed); name != "" {
		return name
	}
	return tag
}

// Orchestrator runs the full translation pipeline for one job at a time.
// It holds no per-job state, so one orchestrator serves any number of
// concurrent workers.
type Orchestrator struct {
	gateway  Gateway
	memory   ContextMemory
	settings Settings
	logger   *slog.Logger
}

func NewOrchestrator(gateway Gateway, memory ContextMemory, settings Settings, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		gateway:  gateway,
		memory:   memory,
		settings: settings,
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// Run executes the pipeline phases for one job and returns the rendered
// subtitle output. Any returned error means this attempt failed; retry
// versus terminal failure is the worker pool's call, not the pipeline's.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job, reporter *Reporter) (string, error) {
	lines, degraded := subtitles.Parse(job.Payload.SubtitleContent)
	if degraded {
		o.logger.Warn("subtitle input did not parse structurally, falling back to plain lines",
			logging.String(logging.FieldJobID, job.ID))
	}
	if len(lines) == 0 {
		return "", services.Wrap(services.ErrValidation, "pipeline", "parse",
			"subtitle content contains no usable lines", nil)
	}

	tone := job.Payload.Tone
	if tone == "" {
		tone = o.settings.DefaultTone
	}

	blueprint, err := o.buildBlueprint(ctx, reporter, lines, job.Payload)
	if err != nil {
		return "", err
	}
	reporter.Publish(bus.BlueprintEvent(blueprint))

	reporter.Stage(ctx, "Indexing dialogue memory")
	if err := o.memory.Index(ctx, job.ID, lines); err != nil {
		return "", fmt.Errorf("index job lines: %w", err)
	}

	translated, err := o.translateLines(ctx, reporter, lines, blueprint, tone, job.Payload.ThinkingMode)
	if err != nil {
		return "", err
	}

	reporter.Stage(ctx, "Cleaning up")
	if err := o.memory.Purge(ctx, job.ID); err != nil {
		o.logger.Warn("memory purge failed, leaving vectors behind",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	return subtitles.Render(translated), nil
}
