package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// Notifier posts task events through an adapter. All posting is
// best-effort: a chat outage never affects task state.
type Notifier struct {
	DB      *gorm.DB
	Adapter Adapter
}

// TaskFinished announces a terminal task. Call it after the completion has
// been persisted.
func (n *Notifier) TaskFinished(ctx context.Context, t *models.Task) {
	if n == nil || n.Adapter == nil || t == nil {
		return
	}
	severity := "success"
	if t.Status == models.TaskFailed {
		severity = "error"
	}
	evt := Event{
		Title:    fmt.Sprintf("Task %d %s", t.ID, t.Status),
		Severity: severity,
		Fields: []Field{
			{Name: "Kind", Value: t.Kind},
			{Name: "Owner", Value: t.Owner},
		},
	}
	if t.Image != nil {
		evt.Fields = append(evt.Fields, Field{Name: "Image", Value: t.Image.Hash})
	}
	if err := n.Adapter.Post(ctx, evt); err != nil {
		log.Printf("notify: task %d: %v", t.ID, err)
	}
}

// PostDigest builds and posts the periodic digest. Quiet periods post
// nothing.
func (n *Notifier) PostDigest(ctx context.Context) {
	if n == nil || n.Adapter == nil || n.DB == nil {
		return
	}
	report, err := BuildDigest(n.DB, time.Now())
	if err != nil {
		log.Printf("notify: digest: %v", err)
		return
	}
	if report == nil {
		return
	}
	if err := n.Adapter.Post(ctx, report.Event()); err != nil {
		log.Printf("notify: digest: %v", err)
	}
}
