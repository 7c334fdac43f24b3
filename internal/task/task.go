// Package task provides TaskRecord lifecycle operations.
package task

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	Kind     string // models.KindBuild or models.KindMove
	Owner    string
	BuildEnv string // worker-environment identifier, e.g. the buildroot image
	Payload  string // request parameters, verbatim JSON
}

// Create persists a new task with status pending. The payload is stored
// exactly as supplied so rebuilds can replay the original request.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Kind != models.KindBuild && opts.Kind != models.KindMove {
		return nil, fmt.Errorf("task: unknown kind %q", opts.Kind)
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("task: owner is required")
	}

	t := models.Task{
		Kind:     opts.Kind,
		Status:   models.TaskPending,
		Owner:    opts.Owner,
		BuildEnv: opts.BuildEnv,
		Payload:  opts.Payload,
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("task: create: %w", err)
	}
	return &t, nil
}

// Get retrieves a task by ID, preloading the produced image if any.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	if err := db.Preload("Image").Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: not found: %d", id)
		}
		return nil, fmt.Errorf("task: get %d: %w", id, err)
	}
	return &t, nil
}

// List returns all tasks, most recently finished first; unfinished tasks
// come first, newest created on top.
func List(db *gorm.DB) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Preload("Image").
		Order("finished_at DESC, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// SetExternalJob records the worker-queue job handle after a successful
// enqueue.
func SetExternalJob(db *gorm.DB, id uint, jobID string) error {
	result := db.Model(&models.Task{}).Where("id = ?", id).
		Update("external_job_id", jobID)
	if result.Error != nil {
		return fmt.Errorf("task: set external job for %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task: not found: %d", id)
	}
	return nil
}

// MarkRunning advances a pending task to running. The started signal from
// the worker is best-effort and unordered with respect to completion, so a
// task that is already running or terminal is left untouched.
func MarkRunning(db *gorm.DB, id uint) error {
	result := db.Model(&models.Task{}).
		Where("id = ? AND status = ?", id, models.TaskPending).
		Update("status", models.TaskRunning)
	if result.Error != nil {
		return fmt.Errorf("task: mark running %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		log.Printf("task: started signal for task %d ignored (not pending)", id)
	}
	return nil
}

// Finish writes a terminal status, the finish timestamp, and optionally an
// appended log. Finish overwrites unconditionally so duplicate completion
// deliveries re-write the same terminal values.
func Finish(db *gorm.DB, id uint, status string, logText string) error {
	if !models.TerminalStatus(status) {
		return fmt.Errorf("task: %q is not a terminal status", status)
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
	}
	if logText != "" {
		updates["log"] = logText
	}
	result := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("task: finish %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task: not found: %d", id)
	}
	return nil
}
