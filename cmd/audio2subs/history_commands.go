package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audio2subs/internal/api"
	"audio2subs/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent subtitle sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sessions(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Started", "Status", "Chunks", "Lines", "Video"},
					sessionRows(resp.Sessions),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session and its transcription attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionDetail(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				s := resp.Session
				fmt.Fprintf(out, "Session:   %s\n", s.ID)
				fmt.Fprintf(out, "Video:     %s\n", s.VideoPath)
				fmt.Fprintf(out, "Subtitles: %s\n", s.SubtitlePath)
				fmt.Fprintf(out, "Backend:   %s\n", s.Backend)
				fmt.Fprintf(out, "Status:    %s\n", s.Status)
				fmt.Fprintf(out, "Started:   %s\n", displayTime(s.StartedAt))
				if s.FinishedAt != "" {
					fmt.Fprintf(out, "Finished:  %s (%s)\n", displayTime(s.FinishedAt), time.Duration(s.ElapsedSecs*float64(time.Second)).Round(time.Second))
				}
				fmt.Fprintf(out, "Chunks:    %d/%d done, %d failed\n", s.ChunksDone, s.ChunksTotal, s.ChunksFailed)
				fmt.Fprintf(out, "Lines:     %d\n", s.Lines)
				if s.Error != "" {
					fmt.Fprintf(out, "Error:     %s\n", s.Error)
				}
				if len(resp.Attempts) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable(
					[]string{"Chunk", "Try", "Span", "Outcome", "Words", "Took", "Error"},
					attemptRows(resp.Attempts),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func sessionRows(sessions []api.SessionRecord) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			shortID(s.ID),
			displayTime(s.StartedAt),
			s.Status,
			fmt.Sprintf("%d/%d", s.ChunksDone, s.ChunksTotal),
			strconv.Itoa(s.Lines),
			s.VideoPath,
		})
	}
	return rows
}

func attemptRows(attempts []api.AttemptRecord) [][]string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, []string{
			strconv.Itoa(a.ChunkID),
			strconv.Itoa(a.Attempt),
			formatClock(a.Start) + "-" + formatClock(a.End),
			a.Outcome,
			strconv.Itoa(a.Words),
			fmt.Sprintf("%.1fs", a.ElapsedSecs),
			a.Error,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// displayTime renders an API timestamp in local time.
func displayTime(raw string) string {
	t, ok := api.ParseTime(raw)
	if !ok {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
