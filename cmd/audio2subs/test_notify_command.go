package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audio2subs/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test ntfy notification",
		Long: "Send a test ntfy notification through the running service, or directly " +
			"from this process when the service is not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				return sendLocalTestNotification(cmd, ctx)
			}
			defer client.Close()

			resp, err := client.TestNotification()
			if err != nil {
				return err
			}
			switch {
			case resp.Message != "":
				fmt.Fprintln(out, resp.Message)
			case resp.Sent:
				fmt.Fprintln(out, "Test notification sent")
			default:
				fmt.Fprintln(out, "Notification not sent")
			}
			return nil
		},
	}
}

func sendLocalTestNotification(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		fmt.Fprintln(out, "ntfy topic not configured")
		return nil
	}
	if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	fmt.Fprintln(out, "test notification sent")
	return nil
}
