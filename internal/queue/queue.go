// Package queue provides the durable job queue behind the submission API
// and the runner that executes claimed jobs out of the request path.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/submit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed queue. It satisfies submit.Queue.
type Store struct {
	DB *gorm.DB
}

var _ submit.Queue = (*Store)(nil)

// Submit persists a queued job and returns its handle.
func (s *Store) Submit(job submit.Job) (string, error) {
	if job.TaskID == 0 {
		return "", fmt.Errorf("queue: task id is required")
	}
	row := models.Job{
		ID:      uuid.NewString(),
		Kind:    job.Kind,
		TaskID:  job.TaskID,
		Payload: job.Params,
		Status:  models.JobQueued,
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return "", fmt.Errorf("queue: submit: %w", err)
	}
	return row.ID, nil
}

// Claim atomically takes the oldest queued job and marks it running. It
// returns nil when the queue is empty.
func Claim(db *gorm.DB) (*models.Job, error) {
	var claimed models.Job

	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", models.JobQueued)
		// sqlite serializes writers and has no row locking syntax; on mysql
		// concurrent runners skip each other's claimed rows.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		result := q.Order("created_at ASC").
			Limit(1).
			Find(&claimed)
		if result.Error != nil {
			return fmt.Errorf("queue: find queued job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		now := time.Now()
		if err := tx.Model(&models.Job{}).Where("id = ?", claimed.ID).Updates(map[string]interface{}{
			"status":     models.JobRunning,
			"attempts":   claimed.Attempts + 1,
			"started_at": now,
		}).Error; err != nil {
			return fmt.Errorf("queue: claim job %s: %w", claimed.ID, err)
		}
		claimed.Status = models.JobRunning
		claimed.Attempts++
		claimed.StartedAt = &now
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// Finish records the raw result and marks the job done. Delivery to the
// completion handlers is tracked separately so a crash in between replays
// the completion.
func Finish(db *gorm.DB, jobID string, result string) error {
	now := time.Now()
	res := db.Model(&models.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":      models.JobDone,
		"result":      result,
		"finished_at": now,
	})
	if res.Error != nil {
		return fmt.Errorf("queue: finish job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("queue: job not found: %s", jobID)
	}
	return nil
}

// MarkDelivered flags a done job as delivered to the completion handlers.
func MarkDelivered(db *gorm.DB, jobID string) error {
	res := db.Model(&models.Job{}).Where("id = ?", jobID).Update("delivered", true)
	if res.Error != nil {
		return fmt.Errorf("queue: mark delivered %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("queue: job not found: %s", jobID)
	}
	return nil
}

// Undelivered returns done jobs whose completion has not reached the
// handlers yet, oldest first.
func Undelivered(db *gorm.DB) ([]models.Job, error) {
	var jobs []models.Job
	if err := db.Where("status = ? AND delivered = ?", models.JobDone, false).
		Order("finished_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("queue: undelivered: %w", err)
	}
	return jobs, nil
}

// Requeue returns jobs stuck running longer than staleAfter back to queued.
// Used on runner startup to recover work lost to a crash mid-execution.
func Requeue(db *gorm.DB, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	res := db.Model(&models.Job{}).
		Where("status = ? AND started_at < ?", models.JobRunning, cutoff).
		Update("status", models.JobQueued)
	if res.Error != nil {
		return 0, fmt.Errorf("queue: requeue stale: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
