package main

import (
	"strings"
	"testing"

	"github.com/zulandar/slipway/internal/models"
)

func TestInvalidateCmd(t *testing.T) {
	cfgPath := writeTestConfig(t)
	gormDB := openConfigDB(t, cfgPath)

	seedImage(t, gormDB, "aaa111", nil)
	parent := "aaa111"
	seedImage(t, gormDB, "bbb222", &parent)
	tag := models.ImageTag{ImageHash: "aaa111", Tag: models.Tag{Name: "alice/app:v1"}, Registry: "registry.example.com"}
	if err := gormDB.Create(&tag).Error; err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "invalidate", "alice/app:v1", "--config", cfgPath)
	if err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if !strings.Contains(out, "Invalidated 2 images.") {
		t.Errorf("expected invalidation count, got: %s", out)
	}

	var img models.Image
	if err := gormDB.First(&img, "hash = ?", "bbb222").Error; err != nil {
		t.Fatal(err)
	}
	if !img.Invalidated {
		t.Error("expected descendant to be invalidated")
	}
}

func TestInvalidateCmd_UnknownTag(t *testing.T) {
	cfgPath := writeTestConfig(t)
	openConfigDB(t, cfgPath)

	out, err := runCmd(t, "invalidate", "nope:v1", "--config", cfgPath)
	if err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if !strings.Contains(out, "Invalidated 0 images.") {
		t.Errorf("expected zero count, got: %s", out)
	}
}
