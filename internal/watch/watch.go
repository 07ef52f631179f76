// Package watch implements the poll worker: the check-and-diff loop that
// fetches availability snapshots, compares them with the persisted state,
// raises DOLU to MUSAIT transition alerts, and terminates once a ticket
// is found or the watched class turns out not to exist.
package watch

import (
	"context"
	"time"

	"github.com/weberkan/raywatch/internal/ipc"
	"github.com/weberkan/raywatch/internal/model"
	"github.com/weberkan/raywatch/internal/notify"
	"github.com/weberkan/raywatch/internal/provider"
	"github.com/weberkan/raywatch/internal/statestore"
)

// Worker exit codes, part of the subprocess contract.
const (
	ExitExhausted   = 0 // ended or cancelled without finding anything
	ExitTicketFound = 1 // transition detected or seats already open
	ExitError       = 2 // unrecoverable error
)

// DefaultRetryBackoff is the fixed delay after a transient snapshot failure.
const DefaultRetryBackoff = 60 * time.Second

// Options configures one worker run.
type Options struct {
	Query        provider.Query
	WatchMode    bool          // loop until terminal; false means a single cycle
	Interval     time.Duration // sleep between cycles in watch mode
	RetryBackoff time.Duration // defaults to DefaultRetryBackoff
	Store        *statestore.Store
	Provider     provider.Provider
	Dispatcher   *notify.Dispatcher
	Emitter      *ipc.Emitter
}

// cycleOutcome is the result of one completed check cycle.
type cycleOutcome struct {
	ticketFound bool
	wagonAbsent bool
	foundWagons []string
	price       string
}

// Run executes the watch loop and returns the worker exit code.
//
// Transient snapshot failures are retried after a fixed backoff without
// counting as a check cycle. State save failures are unrecoverable: the
// persisted mapping must always reflect the last completed cycle.
func Run(ctx context.Context, opts Options) int {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}

	state, err := opts.Store.Load()
	if err != nil {
		opts.Emitter.Logf("state load failed: %v", err)
		return ExitError
	}

	opts.Emitter.Logf("watching %s → %s on %s (wagon=%s, passengers=%d)",
		opts.Query.From, opts.Query.To, opts.Query.Date, opts.Query.Wagon, opts.Query.Passengers)

	cycle := 0
	retries := 0
	for {
		if ctx.Err() != nil {
			opts.Emitter.Emit(ipc.Event{Type: ipc.TypeExhausted})
			return ExitExhausted
		}

		snap, err := opts.Provider.Snapshot(ctx, opts.Query)
		if err != nil {
			if ctx.Err() != nil {
				opts.Emitter.Emit(ipc.Event{Type: ipc.TypeExhausted})
				return ExitExhausted
			}
			retries++
			opts.Emitter.Emit(ipc.Event{Type: ipc.TypeRetrying, Reason: err.Error(), Attempt: retries})
			if !opts.WatchMode {
				return ExitError
			}
			if !sleepWithContext(ctx, opts.RetryBackoff) {
				opts.Emitter.Emit(ipc.Event{Type: ipc.TypeExhausted})
				return ExitExhausted
			}
			continue
		}

		cycle++
		opts.Emitter.Emit(ipc.Event{
			Type: ipc.TypeCycleStarted,
			N:    cycle,
			At:   snap.Timestamp.Format("15:04:05"),
		})

		outcome, err := runCycle(ctx, opts, state, snap, cycle)
		if err != nil {
			opts.Emitter.Logf("cycle %d failed: %v", cycle, err)
			return ExitError
		}

		if outcome.wagonAbsent {
			return ExitExhausted
		}
		if outcome.ticketFound {
			opts.Emitter.Emit(ipc.Event{
				Type:   ipc.TypeTicketFound,
				Wagons: outcome.foundWagons,
				Price:  outcome.price,
			})
			return ExitTicketFound
		}
		if !opts.WatchMode {
			return ExitExhausted
		}
		if !sleepWithContext(ctx, opts.Interval) {
			opts.Emitter.Emit(ipc.Event{Type: ipc.TypeExhausted})
			return ExitExhausted
		}
	}
}

// runCycle diffs one snapshot against the persisted state and saves the
// new state. state is mutated in place and written back in full.
func runCycle(ctx context.Context, opts Options, state map[string]model.WagonState, snap *model.WagonSnapshot, cycle int) (cycleOutcome, error) {
	q := opts.Query
	timestamp := snap.Timestamp.Format(time.RFC3339)

	// A specific seat class that the trip does not offer terminates the
	// watch. The absence marker is persisted so later reads agree.
	if q.Wagon != model.WagonAll {
		if _, exists := snap.Wagons[q.Wagon]; !exists {
			key := statestore.KeyFor(model.WatchKey{
				From: q.From, To: q.To, Date: q.Date, Wagon: q.Wagon, Passengers: q.Passengers,
			})
			state[key] = model.WagonState{
				Status:        model.StatusFull,
				Price:         nil,
				Passengers:    q.Passengers,
				LastChecked:   timestamp,
				WagonNotFound: true,
			}
			if err := opts.Store.Save(state); err != nil {
				return cycleOutcome{}, err
			}
			opts.Emitter.Emit(ipc.Event{Type: ipc.TypeWagonAbsent, Wagon: string(q.Wagon)})
			return cycleOutcome{wagonAbsent: true}, nil
		}
	}

	scope := wagonsInScope(q, snap)
	if len(scope) == 0 {
		opts.Emitter.Logf("no wagon classes discovered this cycle")
		return cycleOutcome{}, nil
	}

	var out cycleOutcome
	for _, wagon := range scope {
		cur := snap.Wagons[wagon]
		key := statestore.KeyFor(model.WatchKey{
			From: q.From, To: q.To, Date: q.Date, Wagon: wagon, Passengers: q.Passengers,
		})
		prev, hadPrev := state[key]

		price := ""
		if cur.Price != nil {
			price = *cur.Price
		}
		opts.Emitter.Emit(ipc.Event{
			Type:       ipc.TypeWagonChecked,
			Wagon:      string(wagon),
			Status:     string(cur.Status),
			Price:      price,
			Passengers: q.Passengers,
		})

		// Action fires only on a genuine DOLU to MUSAIT transition.
		if hadPrev && prev.Status == model.StatusFull && cur.Status == model.StatusAvailable {
			opts.Emitter.Emit(ipc.Event{Type: ipc.TypeTransition, Wagon: string(wagon), Price: price})
			if opts.Dispatcher != nil {
				opts.Dispatcher.Dispatch(ctx, notify.Alert{
					From:       q.From,
					To:         q.To,
					Date:       q.Date,
					Wagon:      wagon,
					Price:      price,
					Passengers: q.Passengers,
					At:         snap.Timestamp,
				})
			}
		}

		// Already-open seats are still a terminal find, transition or not.
		if cur.Status == model.StatusAvailable {
			out.ticketFound = true
			out.foundWagons = append(out.foundWagons, string(wagon))
			if out.price == "" {
				out.price = price
			}
		}

		state[key] = model.WagonState{
			Status:      cur.Status,
			Price:       cur.Price,
			Passengers:  q.Passengers,
			LastChecked: timestamp,
		}
	}

	if err := opts.Store.Save(state); err != nil {
		return cycleOutcome{}, err
	}
	return out, nil
}

// wagonsInScope returns the classes this cycle considers, in stable order.
func wagonsInScope(q Query, snap *model.WagonSnapshot) []model.WagonType {
	var scope []model.WagonType
	for _, wagon := range model.KnownWagonTypes {
		if _, ok := snap.Wagons[wagon]; !ok {
			continue
		}
		if q.Wagon != model.WagonAll && wagon != q.Wagon {
			continue
		}
		scope = append(scope, wagon)
	}
	return scope
}

// Query aliases provider.Query for callers that only import this package.
type Query = provider.Query

// sleepWithContext sleeps for d, returning false if ctx was cancelled first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
