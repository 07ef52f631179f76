// Package scheduler starts watch sessions on cron expressions, for
// routes worth checking on a calendar rather than around the clock.
package scheduler

import (
	"fmt"
	"io"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/weberkan/raywatch/internal/config"
	"github.com/weberkan/raywatch/internal/model"
)

// Starter is the slice of the session controller the scheduler needs.
type Starter interface {
	Active() bool
	Start(p model.WatchParams) error
}

// Scheduler drives config-defined watch schedules.
type Scheduler struct {
	cron *cron.Cron
	out  io.Writer
}

// New builds a Scheduler from the configured schedules. Standard
// 5-field cron expressions (minute, hour, dom, month, dow).
func New(schedules []config.Schedule, controller Starter, out io.Writer) (*Scheduler, error) {
	if out == nil {
		out = io.Discard
	}
	c := cron.New()
	for i, sched := range schedules {
		params, err := scheduleParams(sched)
		if err != nil {
			return nil, fmt.Errorf("scheduler: schedules[%d]: %w", i, err)
		}
		entry := sched
		if _, err := c.AddFunc(sched.Cron, func() {
			if controller.Active() {
				fmt.Fprintf(out, "Schedule %q skipped: a session is already active\n", entry.Cron)
				return
			}
			fmt.Fprintf(out, "Schedule fired: %s → %s on %s\n", entry.From, entry.To, entry.Date)
			if err := controller.Start(params); err != nil {
				log.Printf("scheduler: start %s->%s: %v", entry.From, entry.To, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("scheduler: schedules[%d] cron %q: %w", i, sched.Cron, err)
		}
	}
	return &Scheduler{cron: c, out: out}, nil
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule timer and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports how many schedules are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// scheduleParams converts a config schedule into watch params.
func scheduleParams(sched config.Schedule) (model.WatchParams, error) {
	wagon, err := model.ParseWagonType(sched.WagonType)
	if err != nil {
		return model.WatchParams{}, err
	}
	return model.WatchParams{
		From:       sched.From,
		To:         sched.To,
		Date:       sched.Date,
		Wagon:      wagon,
		Passengers: sched.Passengers,
	}, nil
}
