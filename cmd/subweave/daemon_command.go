package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"subweave/internal/bus"
	"subweave/internal/daemon"
	"subweave/internal/logging"
	"subweave/internal/memory"
	"subweave/internal/pipeline"
	"subweave/internal/queue"
	"subweave/internal/services/ai"
	"subweave/internal/worker"
)

func newDaemonCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the translation daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewForDir(cfg.LogDir, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}

			gateway := ai.NewClient(ai.Config{
				APIKey:         cfg.AI.APIKey,
				BaseURL:        cfg.AI.BaseURL,
				EmbeddingModel: cfg.AI.EmbeddingModel,
				TimeoutSeconds: cfg.AI.TimeoutSeconds,
			})
			index := memory.NewHTTPIndex(memory.HTTPIndexConfig{
				BaseURL:   cfg.Memory.IndexURL,
				IndexName: cfg.Memory.IndexName,
				APIKey:    cfg.Memory.APIKey,
			}, nil)
			memStore := memory.NewStore(gateway, index, cfg.Memory.UpsertChunkSize, logger)

			broker := bus.NewBroker()
			orchestrator := pipeline.NewOrchestrator(gateway, memStore, pipeline.SettingsFromConfig(cfg), logger)
			pool := worker.NewPool(store, broker, orchestrator, worker.Options{
				Workers:       cfg.Workflow.Workers,
				PollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
				ErrorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
				Policy: worker.RetryPolicy{
					MaxAttempts: cfg.Workflow.MaxAttempts,
					Backoff:     worker.ExponentialBackoff(time.Duration(cfg.Workflow.RetryBackoffSeconds) * time.Second),
				},
				Logger: logger,
			})

			d, err := daemon.New(cfg, store, broker, pool, logger,
				daemon.NamedHealthCheck{
					Name: "ai_gateway",
					Check: daemon.HealthCheckFunc(func(ctx context.Context) error {
						return gateway.HealthCheck(ctx, cfg.AI.FastModel)
					}),
				},
			)
			if err != nil {
				_ = store.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				_ = d.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subweave daemon running, api on %s\n", d.APIAddr())

			<-ctx.Done()
			return d.Close()
		},
	}
}
