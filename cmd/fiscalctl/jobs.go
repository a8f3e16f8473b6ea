package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/fiscalia/fiscalia/jobs"
)

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

func newJobsCLI(redisAddr string) (*jobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts, nil)
	if err != nil {
		return nil, err
	}
	return &jobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

func (c *jobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// trigger enqueues a job by name. A non-zero date only applies to
// automation runs.
func (c *jobsCLI) trigger(ctx context.Context, name string, date time.Time) (string, error) {
	if name == jobs.TaskAutomationRun && !date.IsZero() {
		return c.client.EnqueueAutomationRun(ctx, date)
	}
	info, err := c.client.Enqueue(ctx, name)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (c *jobsCLI) stats() ([]jobs.QueueStats, error) {
	return jobs.NewHandler(c.inspector, nil, nil).Stats()
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(jobsTriggerCmd())
	cmd.AddCommand(jobsStatsCmd())
	return cmd
}

func openJobsCLI(cmd *cobra.Command) (*jobsCLI, error) {
	addr, err := cmd.Flags().GetString("redis-addr")
	if err != nil {
		return nil, err
	}
	return newJobsCLI(addr)
}

func jobsTriggerCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a job now",
		Long:      "Enqueue one of: " + strings.Join(jobs.TaskNames, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runDate time.Time
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				runDate = parsed
			}
			cli, err := openJobsCLI(cmd)
			if err != nil {
				return err
			}
			defer cli.Close()
			id, err := cli.trigger(cmd.Context(), args[0], runDate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (task %s)\n", args[0], id)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "business date for automation:run (YYYY-MM-DD)")
	return cmd
}

func jobsStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := openJobsCLI(cmd)
			if err != nil {
				return err
			}
			defer cli.Close()
			stats, err := cli.stats()
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStats(w io.Writer, stats []jobs.QueueStats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "%-10s %8s %8s %9s %6s %8s\n", "QUEUE", "PENDING", "ACTIVE", "SCHEDULED", "RETRY", "ARCHIVED")
	for _, s := range stats {
		fmt.Fprintf(w, "%-10s %8d %8d %9d %6d %8d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	return nil
}
