package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"wardmon.dev/wardmon"
	"wardmon.dev/wardmon/journal"
)

func newServeCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config-file", "", "optional YAML config file")
	cmd.Flags().String("config-dir", "", "directory of process spec files")
	cmd.Flags().String("messages-dir", "", "directory of control messages")
	cmd.Flags().String("journal", "", "journal file path")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("log-file", "", "rotated log file, stderr only if empty")
	cmd.Flags().Duration("stop-timeout", 0, "how long a stopped process may take to exit")

	return cmd
}

func serve(cfg *serveConfig) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := journal.NewFileLockJournaler(cfg.Journal)
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			// Non-fatal error.
			log.Info("wardmon is already running")
			return nil
		}

		return errors.Wrap(err, "failed to acquire journal lock")
	}
	defer j.Close()

	places := wardmon.Places{
		Config:   cfg.ConfigDir,
		Messages: cfg.MessagesDir,
	}

	// The control directories are the operator's surface; they are created
	// here and never deeper in the core.
	for _, dir := range places.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create control directory")
		}
	}

	if cfg.StopTimeout > 0 {
		wardmon.ProcessWaitTimeout = cfg.StopTimeout
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	journaler := journal.MultiWriter(j, journal.NewZapJournaler(log))
	journaler.Write(&wardmon.EventAcquired{})

	m, err := wardmon.NewMonitor(ctx, places, journaler)
	if err != nil {
		return errors.Wrap(err, "failed to create monitor")
	}
	defer m.Stop()

	recv := wardmon.NewReceiver(m, journaler, log.Sugar())

	if _, err := wardmon.NewWatcher(ctx, places, recv, journaler); err != nil {
		return errors.Wrap(err, "failed to watch control directories")
	}

	<-ctx.Done()
	return nil
}
