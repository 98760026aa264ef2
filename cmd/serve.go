package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
	"github.com/aiprodig/leadgen-cli/internal/server"
)

var (
	servePort          int
	serveWithScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	Long:  "Serves the analyze, discover and daily-workflow triggers plus lead CRUD. With --with-scheduler the daily workflow also runs in-process on schedule.cron.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(server.Deps{
			Store:          env.Store,
			Enricher:       env.Enricher,
			Discoverer:     env.Discoverer,
			Workflow:       env.Workflow,
			CronSecret:     cfg.Server.CronSecret,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, port)
		})

		if serveWithScheduler {
			sched, err := discovery.NewScheduler(cfg.Schedule.Cron, env.Workflow,
				discovery.WithRunTimeout(30*time.Minute),
			)
			if err != nil {
				return err
			}
			zap.L().Info("scheduler enabled",
				zap.String("cron", cfg.Schedule.Cron),
				zap.Time("next_run", sched.Next(time.Now())),
			)
			g.Go(func() error {
				return sched.Run(gctx)
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "also run the daily workflow on schedule.cron")
	rootCmd.AddCommand(serveCmd)
}
