package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status struct {
				Running bool `json:"running"`
				Queue   struct {
					Total     int `json:"total"`
					Queued    int `json:"queued"`
					Active    int `json:"active"`
					Completed int `json:"completed"`
					Failed    int `json:"failed"`
				} `json:"queue"`
				QueueDB string            `json:"queue_db"`
				Checks  map[string]string `json:"checks"`
			}
			if err := cctx.getJSON("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			runningKind := statusError
			runningText := "stopped"
			if status.Running {
				runningKind = statusOK
				runningText = "running"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningText, colorize))
			fmt.Fprintln(out, renderStatusLine("Queue DB", statusInfo, status.QueueDB, colorize))
			for name, result := range status.Checks {
				kind := statusOK
				if result != "ok" {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(name, kind, result, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Queue", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", status.Queue.Total), colorize))
			fmt.Fprintln(out, renderStatusLine("Queued", statusInfo, fmt.Sprintf("%d", status.Queue.Queued), colorize))
			fmt.Fprintln(out, renderStatusLine("Active", statusInfo, fmt.Sprintf("%d", status.Queue.Active), colorize))
			fmt.Fprintln(out, renderStatusLine("Completed", statusOK, fmt.Sprintf("%d", status.Queue.Completed), colorize))
			failedKind := statusOK
			if status.Queue.Failed > 0 {
				failedKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", status.Queue.Failed), colorize))
			return nil
		},
	}
}
