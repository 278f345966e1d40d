package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SearchRun describes one execution of a search, used for log correlation.
type SearchRun struct {
	ID             uuid.UUID  `json:"id"`
	PresetID       string     `json:"preset_id,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         RunStatus  `json:"status"`
	PagesFetched   int        `json:"pages_fetched"`
	ListingsFound  int        `json:"listings_found"`
	TotalReported  int        `json:"total_reported"`
	EntriesSkipped int        `json:"entries_skipped"`
}

func NewSearchRun(presetID string) *SearchRun {
	return &SearchRun{
		ID:        uuid.New(),
		PresetID:  presetID,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}

// Finish stamps the run with its final status.
func (r *SearchRun) Finish(err error) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = RunStatusCompleted
	if err != nil {
		r.Status = RunStatusFailed
	}
}

func (r *SearchRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
