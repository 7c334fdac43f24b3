package ingest

import (
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/slipway/internal/image"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

// OnBuildComplete applies a finished build to the task and image stores.
// A missing task is a structural bug and fails fast; everything after the
// lookup drives the task to a terminal status no matter what. Duplicate
// deliveries with the same result re-write the same terminal values.
func OnBuildComplete(db *gorm.DB, taskID uint, res *BuildResult) error {
	t, err := task.Get(db, taskID)
	if err != nil {
		return fmt.Errorf("ingest: build completion for unknown task %d: %w", taskID, err)
	}

	logText := ""
	if res != nil && len(res.LogLines) > 0 {
		logText = strings.Join(res.LogLines, "\n")
	}

	if res == nil {
		return task.Finish(db, t.ID, models.TaskFailed, logText)
	}

	// Both image ids must be present to record anything; the hash is the
	// image's identity and is never invented here.
	if res.BuiltImage == nil || res.BaseImage == nil {
		return task.Finish(db, t.ID, models.TaskFailed, logText)
	}

	base, err := image.CreateIfAbsent(db, image.CreateOpts{
		Hash:   res.BaseImage.ID,
		Status: models.ImageBase,
		Tags:   res.BaseImage.RepoTags,
	})
	if err != nil {
		if ferr := task.Finish(db, t.ID, models.TaskFailed, logText); ferr != nil {
			return fmt.Errorf("ingest: record base image: %v; finish task %d: %w", err, t.ID, ferr)
		}
		return fmt.Errorf("ingest: record base image for task %d: %w", t.ID, err)
	}

	built, err := image.CreateIfAbsent(db, image.CreateOpts{
		Hash:       res.BuiltImage.ID,
		Status:     models.ImageBuilt,
		Tags:       res.BuiltImage.RepoTags,
		ParentHash: base.Hash,
		TaskID:     &t.ID,
	})
	if err != nil {
		if ferr := task.Finish(db, t.ID, models.TaskFailed, logText); ferr != nil {
			return fmt.Errorf("ingest: record built image: %v; finish task %d: %w", err, t.ID, ferr)
		}
		return fmt.Errorf("ingest: record built image for task %d: %w", t.ID, err)
	}

	// Attachments are best-effort: a failure here must not keep the task
	// from its terminal status.
	if err := image.AttachDockerfile(db, built.Hash, res.Dockerfile); err != nil {
		log.Printf("ingest: attach dockerfile to %s: %v", built.Hash, err)
	}
	if _, err := image.AddRPMList(db, built.Hash, res.BuiltPackages); err != nil {
		log.Printf("ingest: attach packages to %s: %v", built.Hash, err)
	}
	if _, err := image.AddRPMList(db, base.Hash, res.BasePackages); err != nil {
		log.Printf("ingest: attach packages to %s: %v", base.Hash, err)
	}

	return task.Finish(db, t.ID, models.TaskSucceeded, logText)
}

// OnMoveComplete applies a finished move/push to the task store. A nil
// result means the worker reported nothing wrong.
func OnMoveComplete(db *gorm.DB, taskID uint, res *MoveResult) error {
	t, err := task.Get(db, taskID)
	if err != nil {
		return fmt.Errorf("ingest: move completion for unknown task %d: %w", taskID, err)
	}

	status := models.TaskSucceeded
	logText := ""
	if res != nil && res.Error != "" {
		status = models.TaskFailed
		logText = res.Error
	}
	return task.Finish(db, t.ID, status, logText)
}
