package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"audio2subs/internal/api"
	"audio2subs/internal/ipc"
	"audio2subs/internal/preflight"
)

func newServiceCommands(ctx *commandContext) []*cobra.Command {
	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show service, player, and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			status, dialErr := fetchStatus(ctx)
			if dialErr != nil {
				cfg := ctx.configValue()
				status = &api.DaemonStatus{
					Backend:      cfg.Transcription.Backend,
					PlayerState:  "detached",
					Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cmd.Context(), cfg)),
				}
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}

			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Service", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("audio2subs", statusOK, fmt.Sprintf("Running (pid %d, up %s)", status.PID, formatClock(status.UptimeSecs)), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("audio2subs", statusError, "Not running", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Backend", statusInfo, status.Backend, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Player", playerStateKind(status.PlayerState), status.PlayerState, colorize))
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("Sessions", statusInfo, strconv.Itoa(status.Sessions), colorize))
			}
			if status.JournalPath != "" {
				fmt.Fprintln(stdout, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Session", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range sessionLines(status.Session, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the audio2subs service",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, "Service is not running")
				return nil
			}
			defer client.Close()
			resp, err := client.Shutdown()
			if err != nil {
				return err
			}
			if resp.Stopping {
				fmt.Fprintln(stdout, "Service stopping")
			} else {
				fmt.Fprintln(stdout, "Service was already stopping")
			}
			return nil
		},
	}

	stopSessionCmd := &cobra.Command{
		Use:   "stop-session",
		Short: "End the current subtitle session but stay attached to mpv",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopSession()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				}
				if !resp.Stopped {
					return errors.New("no session stopped")
				}
				return nil
			})
		},
	}

	seekCmd := &cobra.Command{
		Use:   "seek <position>",
		Short: "Reprioritize transcription around a playback position",
		Long: "Reprioritize transcription around a playback position.\n\n" +
			"The position is seconds (754.5) or a clock value (12:34 or 1:02:03).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Seek(position)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Playhead moved to %s\n", formatClock(resp.Position))
				return nil
			})
		},
	}

	return []*cobra.Command{statusCmd, stopCmd, stopSessionCmd, seekCmd}
}

func fetchStatus(ctx *commandContext) (*api.DaemonStatus, error) {
	var status *api.DaemonStatus
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Status()
		if err != nil {
			return err
		}
		status = resp
		return nil
	})
	return status, err
}

// parsePosition accepts plain seconds or [H:]MM:SS[.frac].
func parsePosition(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("position is required")
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	var total float64
	for i, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("invalid position %q", raw)
		}
		if i > 0 && value >= 60 {
			return 0, fmt.Errorf("invalid position %q", raw)
		}
		if i < len(parts)-1 && value != float64(int(value)) {
			return 0, fmt.Errorf("invalid position %q", raw)
		}
		total = total*60 + value
	}
	return total, nil
}
