// Package provider produces point-in-time availability snapshots for a
// route and date. The TCDD implementation drives a headless browser;
// everything above it sees only the Provider interface.
package provider

import (
	"context"
	"time"

	"github.com/weberkan/raywatch/internal/model"
)

// Query describes one snapshot request.
type Query struct {
	From       string
	To         string
	Date       string          // YYYY-MM-DD
	Wagon      model.WagonType // filter; ALL means every discovered class
	Passengers int
}

// Provider fetches a snapshot of seat availability for a trip.
type Provider interface {
	Snapshot(ctx context.Context, q Query) (*model.WagonSnapshot, error)
}

// Static is a canned Provider for tests and dry runs. Each call returns
// the next element of Snapshots, sticking on the last one.
type Static struct {
	Snapshots []map[model.WagonType]model.WagonInfo
	Errs      []error // consulted per call before Snapshots; nil entries skipped
	calls     int
}

// Snapshot returns the canned result for the current call.
func (s *Static) Snapshot(ctx context.Context, q Query) (*model.WagonSnapshot, error) {
	i := s.calls
	s.calls++
	if i < len(s.Errs) && s.Errs[i] != nil {
		return nil, s.Errs[i]
	}
	if len(s.Snapshots) == 0 {
		return &model.WagonSnapshot{Wagons: map[model.WagonType]model.WagonInfo{}, Timestamp: time.Now()}, nil
	}
	if i >= len(s.Snapshots) {
		i = len(s.Snapshots) - 1
	}
	return &model.WagonSnapshot{Wagons: s.Snapshots[i], Timestamp: time.Now()}, nil
}

// Calls reports how many snapshots have been requested.
func (s *Static) Calls() int { return s.calls }
