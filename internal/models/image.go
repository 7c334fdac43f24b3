package models

import "time"

// Image statuses.
const (
	ImageBuilt         = "built"
	ImagePushedTesting = "pushed-testing"
	ImagePushedStable  = "pushed-stable"
	ImageBase          = "base"
)

// Image is a produced container image, identified by its content hash. The
// ParentHash reference forms the dependency DAG walked by invalidation and
// dependency-tree queries. Images are never deleted; Invalidated is monotone
// and never reset to false.
type Image struct {
	Hash         string  `gorm:"primaryKey;size:64"`
	Status       string  `gorm:"size:16;not null;index"`
	Invalidated  bool    `gorm:"default:false;index"`
	ParentHash   *string `gorm:"size:64;index"`
	TaskID       *uint   `gorm:"uniqueIndex"` // task that produced this image; nil for base images
	DockerfileID *uint
	CreatedAt    time.Time

	Parent     *Image      `gorm:"foreignKey:ParentHash;references:Hash"`
	Task       *Task       `gorm:"foreignKey:TaskID"`
	Dockerfile *Dockerfile `gorm:"foreignKey:DockerfileID"`
	RPMs       []RPM       `gorm:"many2many:image_rpms;"`
	Tags       []ImageTag  `gorm:"foreignKey:ImageHash;references:Hash"`
}

// Dockerfile stores the exact Dockerfile content a build used.
type Dockerfile struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}

// RPM is one package reference in an image's bill of materials, parsed from
// an N-V-R string. Rows are deduplicated by NVR and shared between images.
type RPM struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"size:128;not null;index"`
	Version string `gorm:"size:64;not null"`
	Release string `gorm:"size:64;not null"`
	NVR     string `gorm:"size:255;not null;uniqueIndex"`
}

// Tag is a globally deduplicated free-text image label.
type Tag struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:128;not null;uniqueIndex"`
}

// ImageTag attaches a tag to an image, optionally recording the registry the
// tagged image was pushed to.
type ImageTag struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ImageHash string `gorm:"size:64;not null;index:idx_image_tag,unique"`
	TagID     uint   `gorm:"not null;index:idx_image_tag,unique"`
	Registry  string `gorm:"size:255;index:idx_image_tag,unique"`

	Tag Tag `gorm:"foreignKey:TagID"`
}
