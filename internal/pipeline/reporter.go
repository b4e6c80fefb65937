package pipeline

import (
	"context"
	"log/slog"

	"subweave/internal/bus"
	"subweave/internal/logging"
)

// ProgressStore persists a job's human-readable stage label.
type ProgressStore interface {
	SetProgress(ctx context.Context, id, stage string) error
}

// Reporter carries one job's identity and its stage-reporting capability
// through the pipeline. Each stage transition updates the durable job
// record and publishes a progress event on the job's topic.
type Reporter struct {
	jobID  string
	store  ProgressStore
	broker *bus.Broker
	logger *slog.Logger
}

func NewReporter(jobID string, store ProgressStore, broker *bus.Broker, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reporter{jobID: jobID, store: store, broker: broker, logger: logger}
}

// JobID returns the job this reporter belongs to.
func (r *Reporter) JobID() string {
	return r.jobID
}

// Stage records a stage transition. A persistence failure is logged but
// does not interrupt the job; the bus event still goes out.
func (r *Reporter) Stage(ctx context.Context, label string) {
	if r.store != nil {
		if err := r.store.SetProgress(ctx, r.jobID, label); err != nil {
			r.logger.Warn("failed to persist progress stage",
				logging.String(logging.FieldJobID, r.jobID),
				logging.String(logging.FieldStage, label),
				logging.Error(err))
		}
	}
	if r.broker != nil {
		r.broker.Publish(r.jobID, bus.ProgressEvent(label))
	}
	r.logger.Info("stage transition",
		logging.String(logging.FieldJobID, r.jobID),
		logging.String(logging.FieldStage, label))
}

// Publish sends a non-stage event (blueprint, terminal) on the job topic.
func (r *Reporter) Publish(event bus.Event) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(r.jobID, event)
}
