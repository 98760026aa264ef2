package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
)

var (
	scheduleCron    string
	scheduleTimeout time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily workflow on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scheduleCron != "" {
			cfg.Schedule.Cron = scheduleCron
		}

		env, err := initApp(ctx, "schedule")
		if err != nil {
			return err
		}
		defer env.Close()

		sched, err := discovery.NewScheduler(cfg.Schedule.Cron, env.Workflow,
			discovery.WithRunTimeout(scheduleTimeout),
		)
		if err != nil {
			return err
		}

		zap.L().Info("scheduler started",
			zap.String("cron", cfg.Schedule.Cron),
			zap.Time("next_run", sched.Next(time.Now())),
		)
		return sched.Run(ctx)
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron spec (default schedule.cron)")
	scheduleCmd.Flags().DurationVar(&scheduleTimeout, "run-timeout", 30*time.Minute, "upper bound for one workflow pass")
	rootCmd.AddCommand(scheduleCmd)
}
