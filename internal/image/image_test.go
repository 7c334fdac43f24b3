package image

import (
	"testing"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}, &models.Image{}, &models.Dockerfile{},
		&models.RPM{}, &models.Tag{}, &models.ImageTag{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// mustCreate registers an image or fails the test.
func mustCreate(t *testing.T, db *gorm.DB, opts CreateOpts) *models.Image {
	t.Helper()
	img, err := CreateIfAbsent(db, opts)
	if err != nil {
		t.Fatalf("CreateIfAbsent(%s): %v", opts.Hash, err)
	}
	return img
}

// --- CreateIfAbsent ---

func TestCreateIfAbsent_New(t *testing.T) {
	db := openTestDB(t)

	img := mustCreate(t, db, CreateOpts{
		Hash:   "abc",
		Status: models.ImageBuilt,
		Tags:   []string{"v1", "latest"},
	})
	if img.Hash != "abc" {
		t.Errorf("Hash = %q, want abc", img.Hash)
	}
	if img.Invalidated {
		t.Error("new image should not be invalidated")
	}

	tags, err := TagNames(db, "abc")
	if err != nil {
		t.Fatalf("TagNames: %v", err)
	}
	if len(tags) != 2 || tags[0] != "latest" || tags[1] != "v1" {
		t.Errorf("tags = %v, want [latest v1]", tags)
	}
}

func TestCreateIfAbsent_MissingHash(t *testing.T) {
	db := openTestDB(t)

	_, err := CreateIfAbsent(db, CreateOpts{Status: models.ImageBuilt})
	if err == nil {
		t.Fatal("expected error for missing hash")
	}
	if got := err.Error(); got != "image: hash is required" {
		t.Errorf("error = %q", got)
	}
}

func TestCreateIfAbsent_DuplicateHashKeepsOriginal(t *testing.T) {
	db := openTestDB(t)

	taskID := uint(7)
	mustCreate(t, db, CreateOpts{Hash: "abc", Status: models.ImageBase, Tags: []string{"base"}})

	// Second create with different fields returns the existing row untouched
	// but still attaches the new tags.
	img := mustCreate(t, db, CreateOpts{
		Hash: "abc", Status: models.ImageBuilt, TaskID: &taskID, Tags: []string{"extra"},
	})
	if img.Status != models.ImageBase {
		t.Errorf("Status = %q, want original %q", img.Status, models.ImageBase)
	}
	if img.TaskID != nil {
		t.Errorf("TaskID = %v, want nil", img.TaskID)
	}

	tags, _ := TagNames(db, "abc")
	if len(tags) != 2 {
		t.Errorf("tags = %v, want 2 entries", tags)
	}

	var count int64
	db.Model(&models.Image{}).Count(&count)
	if count != 1 {
		t.Errorf("image count = %d, want 1", count)
	}
}

func TestCreateIfAbsent_ParentAndTask(t *testing.T) {
	db := openTestDB(t)

	taskID := uint(3)
	mustCreate(t, db, CreateOpts{Hash: "base1", Status: models.ImageBase})
	img := mustCreate(t, db, CreateOpts{
		Hash: "abc", Status: models.ImageBuilt, ParentHash: "base1", TaskID: &taskID,
	})
	if img.ParentHash == nil || *img.ParentHash != "base1" {
		t.Errorf("ParentHash = %v, want base1", img.ParentHash)
	}
	if img.TaskID == nil || *img.TaskID != 3 {
		t.Errorf("TaskID = %v, want 3", img.TaskID)
	}
}

// --- AddTags ---

func TestAddTags_GlobalDedup(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt, Tags: []string{"shared"}})
	mustCreate(t, db, CreateOpts{Hash: "b", Status: models.ImageBuilt, Tags: []string{"shared"}})

	// One Tag row, two relations.
	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	if tagCount != 1 {
		t.Errorf("tag count = %d, want 1", tagCount)
	}
	var relCount int64
	db.Model(&models.ImageTag{}).Count(&relCount)
	if relCount != 2 {
		t.Errorf("relation count = %d, want 2", relCount)
	}
}

func TestAddTags_RepeatIsNoop(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt})
	for i := 0; i < 2; i++ {
		if err := AddTags(db, "a", []string{"v1"}, "registry.example.com"); err != nil {
			t.Fatalf("AddTags: %v", err)
		}
	}

	var relCount int64
	db.Model(&models.ImageTag{}).Count(&relCount)
	if relCount != 1 {
		t.Errorf("relation count = %d, want 1", relCount)
	}
}

func TestAddTags_RecordsRegistry(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt})
	if err := AddTags(db, "a", []string{"v1"}, "registry.example.com"); err != nil {
		t.Fatalf("AddTags: %v", err)
	}

	var rel models.ImageTag
	if err := db.First(&rel).Error; err != nil {
		t.Fatalf("load relation: %v", err)
	}
	if rel.Registry != "registry.example.com" {
		t.Errorf("Registry = %q", rel.Registry)
	}
}

// --- AttachDockerfile ---

func TestAttachDockerfile(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "abc", Status: models.ImageBuilt})
	if err := AttachDockerfile(db, "abc", "FROM fedora\nRUN true\n"); err != nil {
		t.Fatalf("AttachDockerfile: %v", err)
	}

	img, err := Get(db, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if img.Dockerfile == nil {
		t.Fatal("Dockerfile = nil, want attached")
	}
	if img.Dockerfile.Content != "FROM fedora\nRUN true\n" {
		t.Errorf("Content = %q", img.Dockerfile.Content)
	}
}

func TestAttachDockerfile_SecondCallNoop(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "abc", Status: models.ImageBuilt})
	if err := AttachDockerfile(db, "abc", "FROM fedora"); err != nil {
		t.Fatalf("first AttachDockerfile: %v", err)
	}
	if err := AttachDockerfile(db, "abc", "FROM fedora"); err != nil {
		t.Fatalf("second AttachDockerfile: %v", err)
	}

	var count int64
	db.Model(&models.Dockerfile{}).Count(&count)
	if count != 1 {
		t.Errorf("dockerfile count = %d, want 1", count)
	}
}

func TestAttachDockerfile_EmptyContentNoop(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "abc", Status: models.ImageBuilt})
	if err := AttachDockerfile(db, "abc", ""); err != nil {
		t.Fatalf("AttachDockerfile: %v", err)
	}

	img, _ := Get(db, "abc")
	if img.DockerfileID != nil {
		t.Error("expected no dockerfile link for empty content")
	}
}

func TestAttachDockerfile_MissingImage(t *testing.T) {
	db := openTestDB(t)

	err := AttachDockerfile(db, "nope", "FROM fedora")
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if got := err.Error(); got != "image: not found: nope" {
		t.Errorf("error = %q", got)
	}
}

// --- Get / List / ByTag ---

func TestGet_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := Get(db, "missing")
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if got := err.Error(); got != "image: not found: missing" {
		t.Errorf("error = %q", got)
	}
}

func TestList_All(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt})
	mustCreate(t, db, CreateOpts{Hash: "b", Status: models.ImageBase})

	imgs, err := List(db)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(imgs) != 2 {
		t.Errorf("len(imgs) = %d, want 2", len(imgs))
	}
}

func TestByTag(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt, Tags: []string{"v1"}})
	mustCreate(t, db, CreateOpts{Hash: "b", Status: models.ImageBuilt, Tags: []string{"v2"}})

	imgs, err := ByTag(db, "v1")
	if err != nil {
		t.Fatalf("ByTag: %v", err)
	}
	if len(imgs) != 1 || imgs[0].Hash != "a" {
		t.Errorf("ByTag(v1) = %v, want [a]", imgs)
	}

	imgs, err = ByTag(db, "unknown")
	if err != nil {
		t.Fatalf("ByTag: %v", err)
	}
	if len(imgs) != 0 {
		t.Errorf("ByTag(unknown) = %v, want empty", imgs)
	}
}
