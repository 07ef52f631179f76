package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weberkan/raywatch/internal/config"
	"github.com/weberkan/raywatch/internal/ipc"
	"github.com/weberkan/raywatch/internal/model"
	"github.com/weberkan/raywatch/internal/notify"
	"github.com/weberkan/raywatch/internal/provider"
	"github.com/weberkan/raywatch/internal/statestore"
	"github.com/weberkan/raywatch/internal/watch"
)

// watchFlags are shared by the watch and check commands.
type watchFlags struct {
	configPath string
	from       string
	to         string
	date       string
	wagonType  string
	passengers int
	stateFile  string
	baseURL    string
}

func (f *watchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "raywatch.yaml", "path to config file")
	cmd.Flags().StringVarP(&f.from, "from", "f", "", "departure station (required)")
	cmd.Flags().StringVarP(&f.to, "to", "t", "", "arrival station (required)")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "trip date, YYYY-MM-DD (required)")
	cmd.Flags().StringVarP(&f.wagonType, "wagon-type", "w", "ALL", "wagon type: EKONOMİ, BUSINESS, YATAKLI, or ALL")
	cmd.Flags().IntVarP(&f.passengers, "passengers", "p", 1, "passenger count")
	cmd.Flags().StringVar(&f.stateFile, "state-file", "", "state file path (overrides config)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "site base URL (overrides config)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("date")
}

// buildOptions assembles worker options from flags and config.
func (f *watchFlags) buildOptions(out *ipc.Emitter) (watch.Options, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return watch.Options{}, err
	}
	wagon, err := model.ParseWagonType(f.wagonType)
	if err != nil {
		return watch.Options{}, err
	}

	stateFile := f.stateFile
	if stateFile == "" {
		stateFile = cfg.StateFile
	}
	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}

	return watch.Options{
		Query: watch.Query{
			From:       f.from,
			To:         f.to,
			Date:       f.date,
			Wagon:      wagon,
			Passengers: f.passengers,
		},
		Store:      statestore.New(stateFile),
		Provider:   provider.NewTCDD(baseURL),
		Dispatcher: notify.FromConfig(cfg.Notify, os.Stdout),
		Emitter:    out,
	}, nil
}

func newWatchCmd() *cobra.Command {
	var (
		flags           watchFlags
		watchMode       bool
		intervalMinutes float64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the poll worker for one route and date",
		Long: "Checks seat availability for a route and date, emitting one JSON event per line on stdout. " +
			"With --watch it polls until a ticket is found, the class turns out to be absent, or it is terminated. " +
			"Exit codes: 0 nothing found, 1 ticket found, 2 error.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			emitter := ipc.NewEmitter(cmd.OutOrStdout())
			opts, err := flags.buildOptions(emitter)
			if err != nil {
				emitter.Logf("setup failed: %v", err)
				return &exitCodeError{code: watch.ExitError}
			}
			opts.WatchMode = watchMode
			opts.Interval = time.Duration(intervalMinutes * float64(time.Minute))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if code := watch.Run(ctx, opts); code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&watchMode, "watch", false, "poll continuously until a terminal condition")
	cmd.Flags().Float64Var(&intervalMinutes, "interval", 10, "poll interval in minutes (fractional allowed)")
	return cmd
}
