package history

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/weberkan/raywatch/internal/model"
)

// Recorder writes session and check rows. A nil Recorder (history turned
// off) is safe to call; every method becomes a no-op.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder wraps a history database. Returns nil when db is nil so
// callers can thread an optional recorder through without nil checks.
func NewRecorder(db *gorm.DB) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db}
}

// StartSession inserts a running session row and returns its ID.
func (r *Recorder) StartSession(p model.WatchParams) (uint, error) {
	if r == nil {
		return 0, nil
	}
	s := Session{
		FromStation:     p.From,
		ToStation:       p.To,
		Date:            p.Date,
		WagonType:       string(p.Wagon),
		Passengers:      p.Passengers,
		IntervalMinutes: p.IntervalMinutes,
		Outcome:         "running",
		StartedAt:       time.Now(),
	}
	if err := r.db.Create(&s).Error; err != nil {
		return 0, fmt.Errorf("history: start session: %w", err)
	}
	return s.ID, nil
}

// RecordCheck inserts one per-class observation for a session cycle.
func (r *Recorder) RecordCheck(sessionID uint, cycle int, wagon, status, price string) error {
	if r == nil || sessionID == 0 {
		return nil
	}
	c := Check{
		SessionID: sessionID,
		Cycle:     cycle,
		WagonType: wagon,
		Status:    status,
		Price:     price,
		CheckedAt: time.Now(),
	}
	if err := r.db.Create(&c).Error; err != nil {
		return fmt.Errorf("history: record check: %w", err)
	}
	return nil
}

// FinishSession stamps the session outcome and end time.
func (r *Recorder) FinishSession(sessionID uint, outcome, price string, checkCount int) error {
	if r == nil || sessionID == 0 {
		return nil
	}
	now := time.Now()
	updates := map[string]interface{}{
		"outcome":     outcome,
		"ended_at":    &now,
		"check_count": checkCount,
	}
	if price != "" {
		updates["price"] = price
	}
	if err := r.db.Model(&Session{}).Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		return fmt.Errorf("history: finish session %d: %w", sessionID, err)
	}
	return nil
}

// RecentSessions returns the most recent sessions, newest first, with
// their checks preloaded.
func (r *Recorder) RecentSessions(limit int) ([]Session, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var sessions []Session
	if err := r.db.Preload("Checks").Order("id DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("history: recent sessions: %w", err)
	}
	return sessions, nil
}
