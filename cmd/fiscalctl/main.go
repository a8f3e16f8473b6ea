package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fiscalctl",
		Short:         "Operate the Fiscalia finance engine",
		Long:          "fiscalctl triggers background jobs, inspects queues and builds offline finance reports from JSON exports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("redis-addr", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address used by the job queue")

	root.AddCommand(jobsCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("fiscalctl", slog.Any("error", err))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
