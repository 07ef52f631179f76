package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weberkan/raywatch/internal/config"
	"github.com/weberkan/raywatch/internal/history"
	"github.com/weberkan/raywatch/internal/scheduler"
	"github.com/weberkan/raywatch/internal/server"
	"github.com/weberkan/raywatch/internal/session"
	"github.com/weberkan/raywatch/internal/statestore"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API server",
		Long:  "Serves the watch control API and supervises poll workers. One watch session is active at a time; starting a new one replaces the old.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "raywatch.yaml", "path to config file")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	out := cmd.OutOrStdout()

	db, err := history.Open(cfg.History)
	if err != nil {
		// History is an enrichment; the watcher works without it.
		log.Printf("serve: history disabled: %v", err)
	}
	recorder := history.NewRecorder(db)

	workerBinary := cfg.WorkerBinary
	if workerBinary == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("serve: resolve worker binary: %w", err)
		}
		workerBinary = self
	}

	controller := session.New(session.Options{
		WorkerBinary:           workerBinary,
		ConfigPath:             configPath,
		Store:                  statestore.New(cfg.StateFile),
		Recorder:               recorder,
		DefaultIntervalMinutes: cfg.IntervalMinutes,
		Out:                    out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Schedules) > 0 {
		sched, err := scheduler.New(cfg.Schedules, controller, out)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		fmt.Fprintf(out, "Scheduler running with %d schedule(s)\n", sched.Entries())
	}

	defer func() {
		if err := controller.Stop(); err != nil {
			log.Printf("serve: shutdown stop: %v", err)
		}
	}()

	return server.Start(ctx, server.Opts{
		Controller: controller,
		Recorder:   recorder,
		Port:       cfg.Port,
		Out:        out,
	})
}
