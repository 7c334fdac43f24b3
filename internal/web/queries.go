package web

import (
	"time"

	"github.com/zulandar/slipway/internal/image"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

// Overview holds the front-page counters.
type Overview struct {
	Pending     int64
	Running     int64
	Succeeded   int64
	Failed      int64
	Images      int64
	Invalidated int64
}

// Summary counts tasks by status and images by invalidation.
func Summary(db *gorm.DB) (Overview, error) {
	var o Overview
	counts := []struct {
		status string
		dest   *int64
	}{
		{models.TaskPending, &o.Pending},
		{models.TaskRunning, &o.Running},
		{models.TaskSucceeded, &o.Succeeded},
		{models.TaskFailed, &o.Failed},
	}
	for _, c := range counts {
		if err := db.Model(&models.Task{}).Where("status = ?", c.status).Count(c.dest).Error; err != nil {
			return o, err
		}
	}
	if err := db.Model(&models.Image{}).Count(&o.Images).Error; err != nil {
		return o, err
	}
	if err := db.Model(&models.Image{}).Where("invalidated = ?", true).Count(&o.Invalidated).Error; err != nil {
		return o, err
	}
	return o, nil
}

// TaskRow holds task data for the list view.
type TaskRow struct {
	ID        uint
	Kind      string
	Status    string
	Owner     string
	Created   time.Time
	Finished  string
	ImageHash string
}

// TaskRows returns all tasks in the API's listing order.
func TaskRows(db *gorm.DB) ([]TaskRow, error) {
	tasks, err := task.List(db)
	if err != nil {
		return nil, err
	}
	rows := make([]TaskRow, len(tasks))
	for i, t := range tasks {
		rows[i] = TaskRow{
			ID:      t.ID,
			Kind:    t.Kind,
			Status:  t.Status,
			Owner:   t.Owner,
			Created: t.CreatedAt,
		}
		if t.FinishedAt != nil {
			rows[i].Finished = t.FinishedAt.Format("2006-01-02 15:04")
		}
		if t.Image != nil {
			rows[i].ImageHash = t.Image.Hash
		}
	}
	return rows, nil
}

// ImageRow holds image data for the list view.
type ImageRow struct {
	Hash        string
	Status      string
	Invalidated bool
	Parent      string
	Tags        []string
}

// ImageRows returns all images with their tag names resolved.
func ImageRows(db *gorm.DB) ([]ImageRow, error) {
	imgs, err := image.List(db)
	if err != nil {
		return nil, err
	}
	rows := make([]ImageRow, len(imgs))
	for i, img := range imgs {
		rows[i] = ImageRow{
			Hash:        img.Hash,
			Status:      img.Status,
			Invalidated: img.Invalidated,
		}
		if img.ParentHash != nil {
			rows[i].Parent = *img.ParentHash
		}
		tags, err := image.TagNames(db, img.Hash)
		if err != nil {
			return nil, err
		}
		rows[i].Tags = tags
	}
	return rows, nil
}

// ImageDetail aggregates everything the image page shows.
type ImageDetail struct {
	Row        ImageRow
	Packages   []string
	Children   []string
	Dockerfile string
	TaskID     uint
}

// ImagePage loads one image with packages, children, and provenance.
func ImagePage(db *gorm.DB, hash string) (*ImageDetail, error) {
	img, err := image.Get(db, hash)
	if err != nil {
		return nil, err
	}
	d := &ImageDetail{Row: ImageRow{
		Hash:        img.Hash,
		Status:      img.Status,
		Invalidated: img.Invalidated,
	}}
	if img.ParentHash != nil {
		d.Row.Parent = *img.ParentHash
	}
	if d.Row.Tags, err = image.TagNames(db, hash); err != nil {
		return nil, err
	}
	if d.Packages, err = image.OrderedPackages(db, hash); err != nil {
		return nil, err
	}
	if d.Children, err = image.Children(db, hash); err != nil {
		return nil, err
	}
	if img.Dockerfile != nil {
		d.Dockerfile = img.Dockerfile.Content
	}
	if img.TaskID != nil {
		d.TaskID = *img.TaskID
	}
	return d, nil
}
