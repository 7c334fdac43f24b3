package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// DefaultStaleThreshold is the age after which a non-terminal task is
// reported as stale. Stale tasks are an operational signal only; the
// service never cancels them.
const DefaultStaleThreshold = 4 * time.Hour

// Digest holds computed metrics for a 24-hour period.
type Digest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Created     int64
	Succeeded   int64
	Failed      int64
	Stale       []models.Task
}

// BuildDigest queries the last 24 hours of activity. Returns nil when there
// is nothing to report.
func BuildDigest(db *gorm.DB, now time.Time) (*Digest, error) {
	since := now.Add(-24 * time.Hour)
	d := &Digest{PeriodStart: since, PeriodEnd: now}

	if err := db.Model(&models.Task{}).
		Where("created_at >= ? AND created_at < ?", since, now).
		Count(&d.Created).Error; err != nil {
		return nil, fmt.Errorf("notify: digest: %w", err)
	}
	if err := db.Model(&models.Task{}).
		Where("status = ? AND finished_at >= ? AND finished_at < ?", models.TaskSucceeded, since, now).
		Count(&d.Succeeded).Error; err != nil {
		return nil, fmt.Errorf("notify: digest: %w", err)
	}
	if err := db.Model(&models.Task{}).
		Where("status = ? AND finished_at >= ? AND finished_at < ?", models.TaskFailed, since, now).
		Count(&d.Failed).Error; err != nil {
		return nil, fmt.Errorf("notify: digest: %w", err)
	}

	stale, err := StaleTasks(db, DefaultStaleThreshold)
	if err != nil {
		return nil, err
	}
	d.Stale = stale

	if d.Created == 0 && d.Succeeded == 0 && d.Failed == 0 && len(d.Stale) == 0 {
		return nil, nil
	}
	return d, nil
}

// StaleTasks returns non-terminal tasks older than threshold, oldest first.
func StaleTasks(db *gorm.DB, threshold time.Duration) ([]models.Task, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("notify: threshold must be positive")
	}
	cutoff := time.Now().Add(-threshold)
	var tasks []models.Task
	if err := db.Where("status IN ? AND created_at < ?",
		[]string{models.TaskPending, models.TaskRunning}, cutoff).
		Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("notify: stale tasks: %w", err)
	}
	return tasks, nil
}

// Event formats the digest for posting.
func (d *Digest) Event() Event {
	severity := "info"
	if d.Failed > 0 || len(d.Stale) > 0 {
		severity = "error"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%d submitted, %d succeeded, %d failed in the last 24h.",
		d.Created, d.Succeeded, d.Failed)
	if len(d.Stale) > 0 {
		fmt.Fprintf(&body, "\n%d tasks have been waiting for over %s:", len(d.Stale), DefaultStaleThreshold)
		for _, t := range d.Stale {
			fmt.Fprintf(&body, "\n  task %d (%s, %s) since %s",
				t.ID, t.Kind, t.Status, t.CreatedAt.Format("Jan 2 15:04"))
		}
	}

	return Event{
		Title:    "Build service daily digest",
		Body:     body.String(),
		Severity: severity,
	}
}
