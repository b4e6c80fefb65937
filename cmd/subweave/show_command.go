package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type jobDetail struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Progress  string `json:"progress"`
	LastError string `json:"last_error"`
	Result    string `json:"result"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newShowCommand(cctx *commandContext) *cobra.Command {
	var printResult bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobDetail
			if err := cctx.getJSON("/api/jobs/"+args[0], &job); err != nil {
				return err
			}

			if printResult {
				if job.Result == "" {
					return fmt.Errorf("job %s has no result yet (status %s)", job.ID, job.Status)
				}
				fmt.Fprint(cmd.OutOrStdout(), job.Result)
				return nil
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Status", statusKindFor(job.Status), displayStatus(job.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, job.Progress, colorize))
			fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d", job.Attempts), colorize))
			if job.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Last error", statusError, job.LastError, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt, colorize))
			fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, job.UpdatedAt, colorize))
			if job.Result != "" {
				fmt.Fprintln(out, renderStatusLine("Result", statusOK, "available (use --result)", colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printResult, "result", false, "Print only the translated subtitle output")
	return cmd
}

// newWatchCommand follows a job's SSE event stream until it reaches a
// terminal state.
func newWatchCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Stream a job's live progress events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := cctx.apiBase()
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/api/jobs/"+args[0]+"/events", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return wrapAPIError(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon returned %s", resp.Status)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var event struct {
					Type    string          `json:"type"`
					Payload json.RawMessage `json:"payload"`
				}
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
					continue
				}
				switch event.Type {
				case "progress":
					var body struct {
						Stage string `json:"stage"`
					}
					_ = json.Unmarshal(event.Payload, &body)
					fmt.Fprintf(out, "progress  %s\n", body.Stage)
				case "blueprint_ready":
					fmt.Fprintln(out, "blueprint ready")
				case "completed":
					fmt.Fprintf(out, "completed; fetch the output with `subweave show %s --result`\n", args[0])
					return nil
				case "failed":
					var body struct {
						Error string `json:"error"`
					}
					_ = json.Unmarshal(event.Payload, &body)
					return fmt.Errorf("job failed: %s", body.Error)
				}
			}
			return scanner.Err()
		},
	}
}

func statusKindFor(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "active":
		return statusInfo
	default:
		return statusWarn
	}
}
