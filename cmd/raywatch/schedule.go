package main

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/weberkan/raywatch/internal/config"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newScheduleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List configured watch schedules and their next run times",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Schedules) == 0 {
				fmt.Fprintln(out, "No schedules configured.")
				return nil
			}
			now := time.Now()
			for _, s := range cfg.Schedules {
				sched, err := cronParser.Parse(s.Cron)
				if err != nil {
					return fmt.Errorf("schedule %q: %w", s.Cron, err)
				}
				next := sched.Next(now)
				fmt.Fprintf(out, "%-20s %s → %s on %s (%s, %dp)  next: %s (in %s)\n",
					s.Cron, s.From, s.To, s.Date, s.WagonType, s.Passengers,
					next.Format("2006-01-02 15:04"), time.Until(next).Round(time.Minute))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "raywatch.yaml", "path to config file")
	return cmd
}
