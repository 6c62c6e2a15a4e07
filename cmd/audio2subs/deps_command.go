package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"audio2subs/internal/api"
	"audio2subs/internal/deps"
	"audio2subs/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and backend prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(api.FromDependencies(statuses), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Preflight ("+cfg.Transcription.Backend+")", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if missing := deps.Missing(statuses); len(missing) > 0 || len(preflight.Failed(results)) > 0 {
				return errors.New("some prerequisites are not satisfied")
			}
			return nil
		},
	}
}
