package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audio2subs/internal/daemonrun"
	"audio2subs/internal/journal"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to mpv and generate subtitles for the playing video",
		Long: "Attach to mpv over its IPC socket and write live subtitles next to every video it plays.\n\n" +
			"Start mpv with --input-ipc-server pointing at player.socket_path (or pass --mpv-socket).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.Version = version
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.SocketPath, "mpv-socket", "", "Override player.socket_path")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "Override transcription.backend")
	cmd.Flags().BoolVar(&opts.Persistent, "persistent", false, "Keep running after mpv sends ai-subs/stop")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var output string
	var backend string
	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Transcribe a whole video to a subtitle file without mpv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if b := strings.TrimSpace(backend); b != "" {
				cfg.Transcription.Backend = b
			}
			stdout := cmd.OutOrStdout()
			status, err := daemonrun.Transcribe(cmd.Context(), cfg, daemonrun.TranscribeOptions{
				Video:    args[0],
				Output:   output,
				Notifier: newProgressNotifier(stdout, shouldColorize(stdout)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %d lines to %s\n", status.Lines, status.SubtitlePath)
			if status.Outcome == journal.StatusPartial {
				fmt.Fprintf(stdout, "%d chunks failed and left gaps\n", status.Progress.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Subtitle file path (default: next to the video)")
	cmd.Flags().StringVar(&backend, "backend", "", "Override transcription.backend")
	return cmd
}
