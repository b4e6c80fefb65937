package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"subweave/internal/queue"
)

func newSubmitCommand(cctx *commandContext) *cobra.Command {
	var tone string
	var thinking bool
	var glossaryPath string

	cmd := &cobra.Command{
		Use:   "submit <subtitle-file>",
		Short: "Submit a subtitle file for translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read subtitle file: %w", err)
			}
			if strings.TrimSpace(string(content)) == "" {
				return fmt.Errorf("subtitle file %s is empty", args[0])
			}

			glossary, err := loadGlossary(glossaryPath)
			if err != nil {
				return err
			}

			payload := map[string]any{
				"subtitle_content": string(content),
				"tone":             tone,
				"thinking_mode":    thinking,
				"glossary":         glossary,
			}
			var response struct {
				JobID string `json:"job_id"`
			}
			if err := cctx.postJSON("/api/jobs", payload, &response); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", response.JobID)
			fmt.Fprintf(cmd.OutOrStdout(), "Follow it with `subweave watch %s`\n", response.JobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tone, "tone", "", "Desired translation tone (e.g. Casual, Formal)")
	cmd.Flags().BoolVar(&thinking, "thinking", false, "Use the deep model for difficult lines")
	cmd.Flags().StringVar(&glossaryPath, "glossary", "", "Path to a JSON glossary file of {term, translation} pairs")
	return cmd
}

func loadGlossary(path string) ([]queue.GlossaryEntry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary file: %w", err)
	}
	var entries []queue.GlossaryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse glossary file %s: %w", path, err)
	}
	for i, entry := range entries {
		if strings.TrimSpace(entry.Term) == "" || strings.TrimSpace(entry.Translation) == "" {
			return nil, fmt.Errorf("glossary entry %d is missing a term or translation", i+1)
		}
	}
	return entries, nil
}
