package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"subweave/internal/bus"
	"subweave/internal/logging"
	"subweave/internal/pipeline"
	"subweave/internal/queue"
	"subweave/internal/services"
)

// RetryPolicy decides how many attempts a job gets and how long to wait
// before each retry. The policy is supplied by the caller rather than
// baked into the pool.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// ExponentialBackoff doubles the base delay per completed attempt.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	}
}

// DefaultRetryPolicy gives each job two attempts with a 10 second base
// backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: ExponentialBackoff(10 * time.Second)}
}

// Runner executes one job's pipeline and returns its rendered result.
type Runner interface {
	Run(ctx context.Context, job *queue.Job, reporter *pipeline.Reporter) (string, error)
}

// Pool pulls queued jobs and executes the pipeline against each. Workers
// share only the durable queue and the event bus; the claim transaction
// guarantees a job never runs on two workers at once.
type Pool struct {
	store         *queue.Store
	broker        *bus.Broker
	runner        Runner
	policy        RetryPolicy
	workers       int
	pollInterval  time.Duration
	errorInterval time.Duration
	logger        *slog.Logger

	wg sync.WaitGroup
}

// Options configures a Pool.
type Options struct {
	Workers int
	// PollInterval is the idle wait between claim attempts.
	PollInterval time.Duration
	// ErrorInterval is the wait after a claim error before polling again.
	ErrorInterval time.Duration
	Policy        RetryPolicy
	Logger        *slog.Logger
}

func NewPool(store *queue.Store, broker *bus.Broker, runner Runner, opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ErrorInterval <= 0 {
		opts.ErrorInterval = 5 * time.Second
	}
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy = DefaultRetryPolicy()
	}
	if opts.Policy.Backoff == nil {
		opts.Policy.Backoff = ExponentialBackoff(10 * time.Second)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		store:         store,
		broker:        broker,
		runner:        runner,
		policy:        opts.Policy,
		workers:       opts.Workers,
		pollInterval:  opts.PollInterval,
		errorInterval: opts.ErrorInterval,
		logger:        logger.With(logging.String(logging.FieldComponent, "worker")),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			p.runWorker(ctx, workerID)
		}(i + 1)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	logger := p.logger.With(logging.Int("worker_id", workerID))
	logger.Info("worker started")
	for {
		if ctx.Err() != nil {
			logger.Info("worker stopped")
			return
		}

		job, err := p.store.Claim(ctx)
		if err != nil {
			logger.Error("claim failed", logging.Error(err))
		}
		if job == nil {
			wait := p.pollInterval
			if err != nil {
				wait = p.errorInterval
			}
			select {
			case <-ctx.Done():
				logger.Info("worker stopped")
				return
			case <-time.After(wait):
			}
			continue
		}

		p.Process(ctx, job)
	}
}

// Process runs one claimed job to a requeue or terminal state. Exported so
// the daemon can drain a specific job in tests and tooling.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	logger := p.logger.With(logging.String(logging.FieldJobID, job.ID))
	attempt := job.Attempts + 1
	logger.Info("processing job", logging.Int(logging.FieldAttempt, attempt))

	reporter := pipeline.NewReporter(job.ID, p.store, p.broker, p.logger)
	result, err := p.runner.Run(ctx, job, reporter)
	if err == nil {
		if markErr := p.store.MarkCompleted(ctx, job.ID, result); markErr != nil {
			// The record stays active; restart recovery re-runs the job and
			// its terminal event comes from that run.
			logger.Error("failed to persist completed job", logging.Error(markErr))
			return
		}
		reporter.Publish(bus.CompletedEvent(result))
		logger.Info("job completed", logging.Int(logging.FieldAttempt, attempt))
		return
	}

	message := services.UserMessage(err)
	if attempt < p.policy.MaxAttempts {
		delay := p.policy.Backoff(attempt)
		if requeueErr := p.store.Requeue(ctx, job.ID, attempt, message, delay); requeueErr != nil {
			logger.Error("failed to requeue job", logging.Error(requeueErr))
		}
		reporter.Publish(bus.ProgressEvent("Retry scheduled"))
		logger.Warn("attempt failed, retry scheduled",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		return
	}

	if markErr := p.store.MarkFailed(ctx, job.ID, attempt, message); markErr != nil {
		logger.Error("failed to persist failed job", logging.Error(markErr))
		return
	}
	reporter.Publish(bus.FailedEvent(message))
	logger.Error("job failed, attempts exhausted",
		logging.Int(logging.FieldAttempt, attempt),
		logging.Error(err))
}
