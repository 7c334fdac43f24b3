package models

import "time"

// Task statuses. A task is terminal once failed or succeeded; FinishedAt is
// set if and only if the status is terminal.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskFailed    = "failed"
	TaskSucceeded = "succeeded"
)

// Task kinds.
const (
	KindBuild = "build"
	KindMove  = "move"
)

// Task is the durable record of one build or move request. Tasks are an
// append-only audit trail: they are never deleted, only advanced through
// pending → running → failed/succeeded.
type Task struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ExternalJobID string `gorm:"size:64;index"` // worker-queue job handle; empty until enqueue succeeds
	Kind          string `gorm:"size:16;not null;index"`
	Status        string `gorm:"size:16;default:pending;index"`
	Owner         string `gorm:"size:64;not null"`
	BuildEnv      string `gorm:"size:64"`    // worker-environment identifier, e.g. the buildroot image
	Payload       string `gorm:"type:text"`  // original request parameters, verbatim JSON
	Log           string `gorm:"type:text"`
	CreatedAt     time.Time
	FinishedAt    *time.Time

	Image *Image `gorm:"foreignKey:TaskID"`
}

// TerminalStatus reports whether s is a terminal task status.
func TerminalStatus(s string) bool {
	return s == TaskFailed || s == TaskSucceeded
}
