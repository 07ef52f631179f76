package watch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weberkan/raywatch/internal/ipc"
	"github.com/weberkan/raywatch/internal/model"
	"github.com/weberkan/raywatch/internal/notify"
	"github.com/weberkan/raywatch/internal/provider"
	"github.com/weberkan/raywatch/internal/statestore"
)

type fakeNotifier struct {
	alerts []notify.Alert
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(ctx context.Context, a notify.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

// harness bundles the fakes for one Run invocation.
type harness struct {
	store    *statestore.Store
	notifier *fakeNotifier
	events   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		store:    statestore.New(filepath.Join(t.TempDir(), "state.json")),
		notifier: &fakeNotifier{},
		events:   &bytes.Buffer{},
	}
}

func (h *harness) options(q provider.Query, p provider.Provider, watchMode bool) Options {
	return Options{
		Query:        q,
		WatchMode:    watchMode,
		Interval:     time.Millisecond,
		RetryBackoff: time.Millisecond,
		Store:        h.store,
		Provider:     p,
		Dispatcher:   notify.NewDispatcher(nil, h.notifier),
		Emitter:      ipc.NewEmitter(h.events),
	}
}

// decoded returns the protocol events Run emitted, in order.
func (h *harness) decoded(t *testing.T) []ipc.Event {
	t.Helper()
	var events []ipc.Event
	scanner := bufio.NewScanner(strings.NewReader(h.events.String()))
	for scanner.Scan() {
		if e, ok := ipc.Decode(scanner.Text()); ok {
			events = append(events, e)
		}
	}
	return events
}

func countType(events []ipc.Event, typ ipc.Type) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func seedState(t *testing.T, store *statestore.Store, q provider.Query, wagon model.WagonType, ws model.WagonState) {
	t.Helper()
	state, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	key := statestore.KeyFor(model.WatchKey{
		From: q.From, To: q.To, Date: q.Date, Wagon: wagon, Passengers: q.Passengers,
	})
	state[key] = ws
	if err := store.Save(state); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func strptr(s string) *string { return &s }

func businessQuery() provider.Query {
	return provider.Query{
		From: "Ankara", To: "Konya", Date: "2026-01-20",
		Wagon: model.WagonBusiness, Passengers: 1,
	}
}

func TestFullToAvailableNotifiesOnceAndExits(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()
	seedState(t, h.store, q, model.WagonBusiness, model.WagonState{
		Status: model.StatusFull, Passengers: 1, LastChecked: "2026-01-19T10:00:00Z",
	})

	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{model.WagonBusiness: {Status: model.StatusAvailable, Price: strptr("450TL")}},
	}}

	code := Run(context.Background(), h.options(q, p, true))
	if code != ExitTicketFound {
		t.Fatalf("exit code = %d, want %d", code, ExitTicketFound)
	}

	if len(h.notifier.alerts) != 1 {
		t.Fatalf("got %d alerts, want exactly 1", len(h.notifier.alerts))
	}
	a := h.notifier.alerts[0]
	if a.Wagon != model.WagonBusiness || a.Price != "450TL" {
		t.Errorf("alert = %+v", a)
	}

	ws, ok, err := h.store.Get(model.WatchKey{From: q.From, To: q.To, Date: q.Date, Wagon: model.WagonBusiness, Passengers: 1})
	if err != nil || !ok {
		t.Fatalf("state lookup: ok=%v err=%v", ok, err)
	}
	if ws.Status != model.StatusAvailable || ws.Price == nil || *ws.Price != "450TL" {
		t.Errorf("persisted state = %+v, want MUSAIT at 450TL", ws)
	}

	events := h.decoded(t)
	if countType(events, ipc.TypeTransition) != 1 {
		t.Errorf("want exactly one transition event, got %d", countType(events, ipc.TypeTransition))
	}
	if countType(events, ipc.TypeTicketFound) != 1 {
		t.Errorf("want exactly one ticket_found event, got %d", countType(events, ipc.TypeTicketFound))
	}
}

func TestAlreadyAvailableEndsWithoutNotification(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()

	// No prior state: the first observation is MUSAIT, so there was no
	// DOLU to MUSAIT transition to announce.
	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{model.WagonBusiness: {Status: model.StatusAvailable, Price: strptr("450TL")}},
	}}

	code := Run(context.Background(), h.options(q, p, true))
	if code != ExitTicketFound {
		t.Fatalf("exit code = %d, want %d", code, ExitTicketFound)
	}
	if len(h.notifier.alerts) != 0 {
		t.Errorf("got %d alerts, want none", len(h.notifier.alerts))
	}
	events := h.decoded(t)
	if countType(events, ipc.TypeTransition) != 0 {
		t.Errorf("unexpected transition event")
	}
	if countType(events, ipc.TypeTicketFound) != 1 {
		t.Errorf("want one ticket_found event")
	}
}

func TestFullStaysFullInOneShot(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()
	seedState(t, h.store, q, model.WagonBusiness, model.WagonState{
		Status: model.StatusFull, Passengers: 1,
	})

	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{model.WagonBusiness: {Status: model.StatusFull}},
	}}

	code := Run(context.Background(), h.options(q, p, false))
	if code != ExitExhausted {
		t.Fatalf("exit code = %d, want %d", code, ExitExhausted)
	}
	if len(h.notifier.alerts) != 0 {
		t.Errorf("got %d alerts, want none", len(h.notifier.alerts))
	}
	ws, ok, err := h.store.Get(model.WatchKey{From: q.From, To: q.To, Date: q.Date, Wagon: model.WagonBusiness, Passengers: 1})
	if err != nil || !ok {
		t.Fatalf("state lookup: ok=%v err=%v", ok, err)
	}
	if ws.LastChecked == "" {
		t.Error("LastChecked should be refreshed every cycle")
	}
}

func TestAbsentClassTerminatesWithMarker(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()
	q.Wagon = model.WagonYatakli

	// The trip only carries EKONOMİ and BUSINESS.
	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{
			model.WagonEkonomi:  {Status: model.StatusFull},
			model.WagonBusiness: {Status: model.StatusAvailable, Price: strptr("450TL")},
		},
	}}

	code := Run(context.Background(), h.options(q, p, true))
	if code != ExitExhausted {
		t.Fatalf("exit code = %d, want %d", code, ExitExhausted)
	}
	if len(h.notifier.alerts) != 0 {
		t.Errorf("absent class must not notify, got %d alerts", len(h.notifier.alerts))
	}

	ws, ok, err := h.store.Get(model.WatchKey{From: q.From, To: q.To, Date: q.Date, Wagon: model.WagonYatakli, Passengers: 1})
	if err != nil || !ok {
		t.Fatalf("state lookup: ok=%v err=%v", ok, err)
	}
	if !ws.WagonNotFound || ws.Price != nil || ws.Status != model.StatusFull {
		t.Errorf("absence marker = %+v", ws)
	}

	events := h.decoded(t)
	if countType(events, ipc.TypeWagonAbsent) != 1 {
		t.Errorf("want one wagon_absent event")
	}
}

func TestWildcardTracksEveryClassUnderItsOwnKey(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()
	q.Wagon = model.WagonAll

	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{
			model.WagonEkonomi:  {Status: model.StatusFull},
			model.WagonBusiness: {Status: model.StatusFull},
		},
	}}

	code := Run(context.Background(), h.options(q, p, false))
	if code != ExitExhausted {
		t.Fatalf("exit code = %d, want %d", code, ExitExhausted)
	}

	state, err := h.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state) != 2 {
		t.Fatalf("got %d state entries, want one per discovered class", len(state))
	}
	for _, wagon := range []model.WagonType{model.WagonEkonomi, model.WagonBusiness} {
		key := statestore.KeyFor(model.WatchKey{From: q.From, To: q.To, Date: q.Date, Wagon: wagon, Passengers: 1})
		if _, ok := state[key]; !ok {
			t.Errorf("missing state entry for %s", wagon)
		}
	}
}

func TestTransientFailureRetriesWithoutCountingACycle(t *testing.T) {
	h := newHarness(t)
	q := businessQuery()

	p := &provider.Static{
		Errs: []error{errors.New("page timeout"), nil},
		Snapshots: []map[model.WagonType]model.WagonInfo{
			{model.WagonBusiness: {Status: model.StatusAvailable, Price: strptr("450TL")}},
			{model.WagonBusiness: {Status: model.StatusAvailable, Price: strptr("450TL")}},
		},
	}

	code := Run(context.Background(), h.options(q, p, true))
	if code != ExitTicketFound {
		t.Fatalf("exit code = %d, want %d", code, ExitTicketFound)
	}

	events := h.decoded(t)
	if countType(events, ipc.TypeRetrying) != 1 {
		t.Errorf("want one retrying event, got %d", countType(events, ipc.TypeRetrying))
	}
	for _, e := range events {
		if e.Type == ipc.TypeCycleStarted && e.N != 1 {
			t.Errorf("failed attempt must not advance the cycle counter, got N=%d", e.N)
		}
	}
}

func TestOneShotSnapshotFailureIsAnError(t *testing.T) {
	h := newHarness(t)
	p := &provider.Static{Errs: []error{errors.New("browser crashed")}}

	code := Run(context.Background(), h.options(businessQuery(), p, false))
	if code != ExitError {
		t.Fatalf("exit code = %d, want %d", code, ExitError)
	}
}

func TestCancelledContextExitsClean(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &provider.Static{Snapshots: []map[model.WagonType]model.WagonInfo{
		{model.WagonBusiness: {Status: model.StatusFull}},
	}}

	code := Run(ctx, h.options(businessQuery(), p, true))
	if code != ExitExhausted {
		t.Fatalf("exit code = %d, want %d", code, ExitExhausted)
	}
	events := h.decoded(t)
	if countType(events, ipc.TypeExhausted) != 1 {
		t.Errorf("want an exhausted event on cancellation")
	}
}
