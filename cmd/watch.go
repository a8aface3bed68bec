package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/nats"
	"github.com/spf13/cobra"
)

const defaultNatsURL = "nats://127.0.0.1:4222"

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print daemon notifications as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			client := nats.NewClient(url, logging.GetLogger("nats"))
			if err := client.Connect(); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			unsub, err := client.Notifications(func(kind string, data []byte) {
				fmt.Fprintln(out, formatNotification(kind, data))
			})
			if err != nil {
				return err
			}
			defer unsub()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", defaultNatsURL, "NATS server URL")
	return cmd
}

// CreateFanCmd creates the fan command.
func CreateFanCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:       "fan <normal|boost|silent>",
		Short:     "Set the fan level on the running daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"normal", "boost", "silent"},
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			client := nats.NewClient(url, logging.GetLogger("nats"))
			if err := client.Connect(); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := client.Request(ctx, nats.SubjectFanLevel, nats.FanMessage{Level: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fan level set to %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", defaultNatsURL, "NATS server URL")
	return cmd
}

// formatNotification renders one notification as "kind key=value ...".
func formatNotification(kind string, data []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Sprintf("%s %s", kind, data)
	}
	delete(fields, "timestamp")

	line := kind
	for _, key := range []string{"level", "name", "source", "limit", "dedicated", "enabled", "effect"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if key == "effect" {
			raw, _ := json.Marshal(v)
			v = string(raw)
		}
		line += fmt.Sprintf(" %s=%v", key, v)
	}
	return line
}
