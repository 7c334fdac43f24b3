// Package image provides the image graph store: produced images, their
// parent/base relationships, tags, attached content, and the invalidation
// traversal over the resulting DAG.
package image

import (
	"errors"
	"fmt"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for registering an image.
type CreateOpts struct {
	Hash       string
	Status     string
	Tags       []string
	Registry   string // optional registry recorded on the tag relations
	ParentHash string // empty for base images
	TaskID     *uint  // task that produced the image; nil for base images
}

// CreateIfAbsent registers an image keyed by content hash. If an image with
// the same hash already exists it is returned unchanged apart from tag
// attachment, which is idempotent. Hashes come from build results and are
// never invented here.
func CreateIfAbsent(db *gorm.DB, opts CreateOpts) (*models.Image, error) {
	if opts.Hash == "" {
		return nil, fmt.Errorf("image: hash is required")
	}
	if opts.Status == "" {
		return nil, fmt.Errorf("image: status is required")
	}

	img := models.Image{
		Hash:   opts.Hash,
		Status: opts.Status,
		TaskID: opts.TaskID,
	}
	if opts.ParentHash != "" {
		img.ParentHash = &opts.ParentHash
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Image
		err := tx.Where("hash = ?", opts.Hash).First(&existing).Error
		switch {
		case err == nil:
			img = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&img).Error; err != nil {
				return fmt.Errorf("image: create %s: %w", opts.Hash, err)
			}
		default:
			return fmt.Errorf("image: lookup %s: %w", opts.Hash, err)
		}
		return addTags(tx, opts.Hash, opts.Tags, opts.Registry)
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Get retrieves an image by hash with tags, packages, Dockerfile and task
// preloaded.
func Get(db *gorm.DB, hash string) (*models.Image, error) {
	var img models.Image
	err := db.Preload("Tags.Tag").Preload("RPMs").Preload("Dockerfile").Preload("Task").
		Where("hash = ?", hash).First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("image: not found: %s", hash)
		}
		return nil, fmt.Errorf("image: get %s: %w", hash, err)
	}
	return &img, nil
}

// List returns all images with tags and packages preloaded, newest first.
func List(db *gorm.DB) ([]models.Image, error) {
	var imgs []models.Image
	if err := db.Preload("Tags.Tag").Preload("RPMs").
		Order("created_at DESC, hash ASC").Find(&imgs).Error; err != nil {
		return nil, fmt.Errorf("image: list: %w", err)
	}
	return imgs, nil
}

// AddTags attaches tag names to an image. Tag names are deduplicated
// globally; attaching an existing (image, tag, registry) relation is a no-op.
func AddTags(db *gorm.DB, hash string, tags []string, registry string) error {
	return addTags(db, hash, tags, registry)
}

func addTags(db *gorm.DB, hash string, tags []string, registry string) error {
	for _, name := range tags {
		if name == "" {
			continue
		}
		var tag models.Tag
		if err := db.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return fmt.Errorf("image: tag %q: %w", name, err)
		}
		rel := models.ImageTag{ImageHash: hash, TagID: tag.ID, Registry: registry}
		if err := db.Where(rel).FirstOrCreate(&models.ImageTag{}, rel).Error; err != nil {
			return fmt.Errorf("image: attach tag %q to %s: %w", name, hash, err)
		}
	}
	return nil
}

// TagNames returns the tag names attached to an image, sorted.
func TagNames(db *gorm.DB, hash string) ([]string, error) {
	var names []string
	err := db.Model(&models.ImageTag{}).
		Joins("JOIN tags ON tags.id = image_tags.tag_id").
		Where("image_tags.image_hash = ?", hash).
		Order("tags.name ASC").
		Distinct().Pluck("tags.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("image: tags for %s: %w", hash, err)
	}
	return names, nil
}

// AttachDockerfile persists Dockerfile content and links it to the image.
// A second call with the same content on an already-linked image is a no-op.
func AttachDockerfile(db *gorm.DB, hash string, content string) error {
	if content == "" {
		return nil
	}
	var img models.Image
	if err := db.Where("hash = ?", hash).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("image: not found: %s", hash)
		}
		return fmt.Errorf("image: get %s: %w", hash, err)
	}
	if img.DockerfileID != nil {
		return nil
	}

	df := models.Dockerfile{Content: content}
	if err := db.Create(&df).Error; err != nil {
		return fmt.Errorf("image: create dockerfile for %s: %w", hash, err)
	}
	if err := db.Model(&models.Image{}).Where("hash = ?", hash).
		Update("dockerfile_id", df.ID).Error; err != nil {
		return fmt.Errorf("image: attach dockerfile to %s: %w", hash, err)
	}
	return nil
}

// ByTag returns the images carrying the given tag name.
func ByTag(db *gorm.DB, tagName string) ([]models.Image, error) {
	var imgs []models.Image
	err := db.Joins("JOIN image_tags ON image_tags.image_hash = images.hash").
		Joins("JOIN tags ON tags.id = image_tags.tag_id").
		Where("tags.name = ?", tagName).
		Distinct().Find(&imgs).Error
	if err != nil {
		return nil, fmt.Errorf("image: by tag %q: %w", tagName, err)
	}
	return imgs, nil
}
