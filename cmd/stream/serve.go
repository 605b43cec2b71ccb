package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oliverames/ames-consulting/config"
	"github.com/oliverames/ames-consulting/journal"
	"github.com/oliverames/ames-consulting/scheduler"
	"github.com/oliverames/ames-consulting/server"
	"github.com/oliverames/ames-consulting/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the post API and run the scheduled source probe",
	Long: `Starts the HTTP API, the cron-scheduled source probe and a watcher that
reloads the config file when it changes. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, config.ResolvePath(configPath), cfg, logger)
	},
}

func runServe(ctx context.Context, path string, c config.Config, logger *zap.Logger) error {
	store, err := journal.New(c.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("journal opened", zap.String("path", c.JournalPath))

	diag := source.Tee{
		source.LogDiagnostics{Logger: logger},
		journalDiagnostics{store: store, logger: logger},
	}
	srv := server.New(c, func(c config.Config) server.Lister {
		return newSelector(c, diag, logger)
	}, store, logger)

	sched, err := scheduler.New(c.Timezone, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	probeJob := func() {
		_, _ = probe(ctx, srv.Config(), store, logger)
	}
	if c.ProbeSchedule != "" {
		if err := sched.Schedule(c.ProbeSchedule, probeJob); err != nil {
			return err
		}
	}

	g.Go(func() error { return srv.Run(ctx, c.ListenAddr) })
	g.Go(func() error { return sched.Run(ctx) })
	if path != "" {
		g.Go(func() error {
			return config.Watch(ctx, path, logger, func(next config.Config) {
				reload(srv, sched, probeJob, next, logger)
			})
		})
	}
	return g.Wait()
}

// reload applies a changed config. Listen address, journal path and time
// zone only take effect after a restart.
func reload(srv *server.Server, sched *scheduler.Scheduler, probeJob func(), next config.Config, logger *zap.Logger) {
	prev := srv.Config()
	srv.Update(next)

	if next.ProbeSchedule != prev.ProbeSchedule {
		if next.ProbeSchedule == "" {
			sched.Unschedule()
			logger.Info("probe disabled")
		} else if err := sched.Schedule(next.ProbeSchedule, probeJob); err != nil {
			logger.Warn("failed to reschedule probe", zap.Error(err))
		}
	}

	if next.ListenAddr != prev.ListenAddr || next.JournalPath != prev.JournalPath || next.Timezone != prev.Timezone {
		logger.Warn("listenAddr, journalPath and timezone changes need a restart",
			zap.String("listen_addr", prev.ListenAddr),
			zap.String("journal_path", prev.JournalPath),
			zap.String("timezone", prev.Timezone),
		)
	}
}
