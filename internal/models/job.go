package models

import "time"

// Job statuses.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
)

// Job is a durable worker-queue entry. The runner claims queued jobs,
// executes them, and records the raw result before delivering it to the
// completion handlers. Delivered stays false until delivery succeeds, so a
// crash between execute and deliver replays the completion on restart
// (at-least-once).
type Job struct {
	ID         string `gorm:"primaryKey;size:36"`
	Kind       string `gorm:"size:16;not null;index"`
	TaskID     uint   `gorm:"not null;index"`
	Payload    string `gorm:"type:text"`
	Status     string `gorm:"size:16;default:queued;index"`
	Result     string `gorm:"type:text"` // raw worker result JSON; empty on failure
	Delivered  bool   `gorm:"default:false;index"`
	Attempts   int    `gorm:"default:0"`
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
