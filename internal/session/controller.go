// Package session owns the watch session lifecycle: it supervises the
// poll-worker subprocess, folds the worker's typed event stream and the
// persisted state file into one authoritative SessionStatus, and
// enforces that at most one session is active at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/weberkan/raywatch/internal/history"
	"github.com/weberkan/raywatch/internal/ipc"
	"github.com/weberkan/raywatch/internal/model"
	"github.com/weberkan/raywatch/internal/statestore"
)

// ErrInvalidRequest marks a start request with missing or malformed
// fields. The HTTP layer maps it to a 400.
var ErrInvalidRequest = errors.New("invalid request")

// Turkish status messages, kept wire-compatible with the mobile client.
const (
	msgStarted     = "İzleme başlatıldı: %s → %s"
	msgStopped     = "İzleme durduruldu"
	msgCompleted   = "İzleme tamamlandı"
	msgTicketFound = "Bu güzergahta %s bilet bulundu."
	msgWagonAbsent = "Bu güzergahta %s koltuk bulunmamaktadır."
)

// Options configures a Controller.
type Options struct {
	// WorkerBinary is the executable spawned per session, normally the
	// raywatch binary itself (the "watch" subcommand).
	WorkerBinary string

	// ConfigPath is forwarded to the worker so it shares notifier and
	// scraper settings with the control plane.
	ConfigPath string

	// Store is the state file shared with the worker. The controller only
	// reads it, and only to close the worker-exit race.
	Store *statestore.Store

	// Recorder persists session history; nil disables recording.
	Recorder *history.Recorder

	// DefaultIntervalMinutes is used when a start request has no interval.
	DefaultIntervalMinutes float64

	// Out receives operator-facing progress lines; nil discards them.
	Out io.Writer
}

// Controller is the watch session controller. All status access is
// serialized on mu; start/stop ordering is serialized on lifecycle.
type Controller struct {
	opts Options

	// lifecycle serializes Start/Stop so a new session never spawns
	// before the prior worker is confirmed terminated.
	lifecycle sync.Mutex

	mu        sync.Mutex
	status    model.SessionStatus
	proc      *workerProcess
	params    model.WatchParams
	sessionID uint
}

// New returns a Controller.
func New(opts Options) *Controller {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.DefaultIntervalMinutes <= 0 {
		opts.DefaultIntervalMinutes = 1.5
	}
	return &Controller{
		opts:   opts,
		status: model.SessionStatus{Message: "", Logs: []string{}},
	}
}

// Start begins a new watch session, replacing any active one. The prior
// worker is confirmed terminated before the new one spawns.
func (c *Controller) Start(p model.WatchParams) error {
	if p.Wagon == "" {
		p.Wagon = model.WagonAll
	}
	if p.Passengers == 0 {
		p.Passengers = 1
	}
	if p.IntervalMinutes == 0 {
		p.IntervalMinutes = c.opts.DefaultIntervalMinutes
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if _, err := model.ParseWagonType(string(p.Wagon)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.terminateActive()

	args := []string{
		"watch",
		"--from", p.From,
		"--to", p.To,
		"--date", p.Date,
		"--wagon-type", string(p.Wagon),
		"--passengers", strconv.Itoa(p.Passengers),
		"--watch",
		"--interval", strconv.FormatFloat(p.IntervalMinutes, 'f', -1, 64),
	}
	if c.opts.ConfigPath != "" {
		args = append(args, "--config", c.opts.ConfigPath)
	}

	// Worker lifetime is not tied to any inbound request context.
	proc, err := spawnWorker(context.Background(), c.opts.WorkerBinary, args)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	sessionID, err := c.opts.Recorder.StartSession(p)
	if err != nil {
		log.Printf("session: history start: %v", err)
	}

	c.mu.Lock()
	c.proc = proc
	c.params = p
	c.sessionID = sessionID
	c.status = model.SessionStatus{
		Watching: true,
		Message:  fmt.Sprintf(msgStarted, p.From, p.To),
		Logs:     []string{},
		Params:   &p,
	}
	c.mu.Unlock()

	fmt.Fprintf(c.opts.Out, "Watch session started: %s → %s on %s (wagon=%s, pid=%d)\n",
		p.From, p.To, p.Date, p.Wagon, proc.PID())

	go c.consume(proc, sessionID, p)
	return nil
}

// Stop terminates the active session. Idempotent: stopping with no
// active worker is a no-op success. On return the worker is no longer
// running.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.terminateActive()

	c.mu.Lock()
	c.status.Watching = false
	c.status.Message = msgStopped
	c.mu.Unlock()
	return nil
}

// terminateActive stops the current worker, if any, and waits for it to
// exit. Caller must hold the lifecycle lock, not the status lock: the
// consumer goroutine needs the status lock to drain remaining events.
func (c *Controller) terminateActive() {
	c.mu.Lock()
	proc := c.proc
	c.proc = nil
	c.mu.Unlock()

	if proc == nil {
		return
	}
	proc.Close()
	<-proc.Done()
	fmt.Fprintf(c.opts.Out, "Worker terminated (pid=%d, exit=%d)\n", proc.PID(), proc.ExitCode())
}

// Active reports whether a worker is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proc != nil && !c.proc.Exited()
}

// Status returns a copy of the current session status. If the worker has
// exited but neither terminal flag is set (the exit happened before its
// final events were observed), one authoritative state-store read closes
// the race.
func (c *Controller) Status() model.SessionStatus {
	c.mu.Lock()
	proc := c.proc
	params := c.params
	st := c.status.Clone()
	c.mu.Unlock()

	if proc != nil && proc.Exited() && !st.TicketFound && !st.WagonNotFound {
		if found, absent, price, wagon := c.storeOutcome(params); found || absent {
			c.mu.Lock()
			if c.proc == proc {
				c.applyStoreOutcome(found, absent, price, wagon)
				st = c.status.Clone()
			}
			c.mu.Unlock()
		}
	}
	return st
}

// consume is the status reconciler: the single writer of event-derived
// status fields. It decodes worker stdout, applies events under the
// status lock, and finalizes the session when the worker exits.
func (c *Controller) consume(proc *workerProcess, sessionID uint, params model.WatchParams) {
	// Local view of terminal state, immune to session replacement.
	var (
		ticketFound bool
		wagonAbsent bool
		checkCount  int
		lastPrice   string
	)

	for line := range proc.Recv() {
		ev, ok := ipc.Decode(line)
		if !ok {
			// Non-protocol output (scraper warnings etc.) still lands in
			// the bounded log buffer.
			if line != "" {
				c.withSession(proc, func(s *model.SessionStatus) { s.AppendLog(line) })
			}
			continue
		}

		switch ev.Type {
		case ipc.TypeCycleStarted:
			checkCount = ev.N
		case ipc.TypeTicketFound:
			ticketFound = true
			if ev.Price != "" {
				lastPrice = ev.Price
			}
		case ipc.TypeWagonAbsent:
			wagonAbsent = true
		case ipc.TypeTransition:
			if ev.Price != "" {
				lastPrice = ev.Price
			}
		}

		c.withSession(proc, func(s *model.SessionStatus) { c.applyEvent(s, ev) })

		if ev.Type == ipc.TypeWagonChecked {
			if err := c.opts.Recorder.RecordCheck(sessionID, checkCount, ev.Wagon, ev.Status, ev.Price); err != nil {
				log.Printf("session: %v", err)
			}
		}
	}

	<-proc.Done()
	exitCode := proc.ExitCode()

	// The state store is authoritative once the worker has exited: if the
	// event stream ended without a terminal flag, read the durable truth.
	if !ticketFound && !wagonAbsent && exitCode >= 0 {
		found, absent, price, wagon := c.storeOutcome(params)
		if found || absent {
			ticketFound, wagonAbsent = found, absent
			if price != "" {
				lastPrice = price
			}
			c.withSession(proc, func(s *model.SessionStatus) {
				c.applyStoreOutcome(found, absent, price, wagon)
			})
		}
	}

	c.withSession(proc, func(s *model.SessionStatus) {
		s.Watching = false
		if !s.TicketFound && !s.WagonNotFound && s.Message == fmt.Sprintf(msgStarted, params.From, params.To) {
			s.Message = msgCompleted
		}
		c.proc = nil
	})

	outcome := sessionOutcome(ticketFound, wagonAbsent, exitCode)
	if err := c.opts.Recorder.FinishSession(sessionID, outcome, lastPrice, checkCount); err != nil {
		log.Printf("session: %v", err)
	}
	fmt.Fprintf(c.opts.Out, "Watch session finished: %s (checks=%d)\n", outcome, checkCount)
}

// withSession runs fn under the status lock only while proc is still the
// active session; events from a superseded worker are dropped.
func (c *Controller) withSession(proc *workerProcess, fn func(*model.SessionStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != proc {
		return
	}
	fn(&c.status)
}

// applyEvent folds one worker event into the status. Terminal flags are
// monotonic: once set they are never cleared, and a set wagon_not_found
// freezes the message.
func (c *Controller) applyEvent(s *model.SessionStatus, ev ipc.Event) {
	s.AppendLog(ev.Render())

	switch ev.Type {
	case ipc.TypeCycleStarted:
		s.CheckCount = ev.N
		s.LastCheckTime = ev.At
	case ipc.TypeTransition:
		if ev.Price != "" {
			s.Price = ev.Price
		}
	case ipc.TypeTicketFound:
		s.TicketFound = true
		if len(ev.Wagons) > 0 {
			s.FoundWagon = ev.Wagons[0]
		}
		if ev.Price != "" {
			s.Price = ev.Price
		}
		if !s.WagonNotFound {
			s.Message = fmt.Sprintf(msgTicketFound, c.foundWagonLabel(ev.Wagons))
		}
	case ipc.TypeWagonAbsent:
		s.WagonNotFound = true
		s.Message = fmt.Sprintf(msgWagonAbsent, c.wagonLabel(ev.Wagon))
	}
}

// applyStoreOutcome applies an authoritative state-store read to the
// status, respecting flag stickiness. Caller holds the status lock.
func (c *Controller) applyStoreOutcome(found, absent bool, price, wagon string) {
	s := &c.status
	if absent {
		s.WagonNotFound = true
		s.Message = fmt.Sprintf(msgWagonAbsent, c.wagonLabel(wagon))
		return
	}
	if found && !s.TicketFound {
		s.TicketFound = true
		s.FoundWagon = wagon
		if price != "" {
			s.Price = price
		}
		if !s.WagonNotFound {
			s.Message = fmt.Sprintf(msgTicketFound, wagon)
		}
	}
}

// storeOutcome reads the state store for the session's keys and reports
// whether it records an available ticket or an absent wagon class.
func (c *Controller) storeOutcome(params model.WatchParams) (found, absent bool, price, wagon string) {
	if c.opts.Store == nil || params.From == "" {
		return false, false, "", ""
	}
	state, err := c.opts.Store.Load()
	if err != nil {
		log.Printf("session: state read: %v", err)
		return false, false, "", ""
	}

	scope := model.KnownWagonTypes
	if params.Wagon != model.WagonAll {
		scope = []model.WagonType{params.Wagon}
	}
	for _, w := range scope {
		ws, ok := state[statestore.KeyFor(params.Key(w))]
		if !ok {
			continue
		}
		// Absence only terminates specific-class watches.
		if params.Wagon != model.WagonAll && ws.Absent() {
			return false, true, "", string(w)
		}
		if ws.Status == model.StatusAvailable {
			p := ""
			if ws.Price != nil {
				p = *ws.Price
			}
			return true, false, p, string(w)
		}
	}
	return false, false, "", ""
}

// wagonLabel renders a class name for user-facing messages, using
// "İstenen" (requested) for the wildcard.
func (c *Controller) wagonLabel(wagon string) string {
	if wagon == "" || wagon == string(model.WagonAll) {
		return "İstenen"
	}
	return wagon
}

func (c *Controller) foundWagonLabel(wagons []string) string {
	if len(wagons) == 0 {
		return "İstenen"
	}
	label := wagons[0]
	for _, w := range wagons[1:] {
		label += ", " + w
	}
	return label
}

// sessionOutcome maps the local terminal view and exit code to a
// history outcome label.
func sessionOutcome(ticketFound, wagonAbsent bool, exitCode int) string {
	switch {
	case ticketFound:
		return "ticket_found"
	case wagonAbsent:
		return "wagon_not_found"
	case exitCode == 0:
		return "completed"
	case exitCode == 2:
		return "error"
	default:
		return "stopped"
	}
}
