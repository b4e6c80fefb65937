package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"subweave/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage subweave configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(cctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(config.DefaultConfigPath())
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set ai.api_key and the memory index settings before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir = %q\n", cfg.DataDir)
			fmt.Fprintf(out, "log_dir = %q\n", cfg.LogDir)
			fmt.Fprintf(out, "api_bind = %q\n", cfg.APIBind)
			fmt.Fprintf(out, "log_level = %q\n", cfg.LogLevel)
			fmt.Fprintf(out, "ai.base_url = %q\n", cfg.AI.BaseURL)
			fmt.Fprintf(out, "ai.fast_model = %q\n", cfg.AI.FastModel)
			fmt.Fprintf(out, "ai.deep_model = %q\n", cfg.AI.DeepModel)
			fmt.Fprintf(out, "ai.embedding_model = %q\n", cfg.AI.EmbeddingModel)
			fmt.Fprintf(out, "memory.index_url = %q\n", cfg.Memory.IndexURL)
			fmt.Fprintf(out, "memory.index_name = %q\n", cfg.Memory.IndexName)
			fmt.Fprintf(out, "translation.batch_size = %d\n", cfg.Translation.BatchSize)
			fmt.Fprintf(out, "translation.target_language = %q\n", cfg.Translation.TargetLanguage)
			fmt.Fprintf(out, "workflow.workers = %d\n", cfg.Workflow.Workers)
			fmt.Fprintf(out, "workflow.max_attempts = %d\n", cfg.Workflow.MaxAttempts)
			return nil
		},
	}
}
