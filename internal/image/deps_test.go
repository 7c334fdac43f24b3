package image

import (
	"testing"

	"github.com/zulandar/slipway/internal/models"
)

func TestChildren(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "kid-b", Status: models.ImageBuilt, ParentHash: "base"})
	mustCreate(t, db, CreateOpts{Hash: "kid-a", Status: models.ImageBuilt, ParentHash: "base"})

	kids, err := Children(db, "base")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(kids) != 2 || kids[0] != "kid-a" || kids[1] != "kid-b" {
		t.Errorf("Children = %v, want [kid-a kid-b]", kids)
	}
}

func TestChildren_Leaf(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "solo", Status: models.ImageBuilt})
	kids, err := Children(db, "solo")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(kids) != 0 {
		t.Errorf("Children = %v, want empty", kids)
	}
}

// --- Invalidate ---

func TestInvalidate_CascadesToDescendants(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "mid", Status: models.ImageBuilt, ParentHash: "base"})
	mustCreate(t, db, CreateOpts{Hash: "leaf", Status: models.ImageBuilt, ParentHash: "mid"})
	mustCreate(t, db, CreateOpts{Hash: "other", Status: models.ImageBuilt})

	count, err := Invalidate(db, "base")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	for _, h := range []string{"base", "mid", "leaf"} {
		img, _ := Get(db, h)
		if !img.Invalidated {
			t.Errorf("%s not invalidated", h)
		}
	}
	other, _ := Get(db, "other")
	if other.Invalidated {
		t.Error("unrelated image must not be invalidated")
	}
}

func TestInvalidate_Subtree(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "mid", Status: models.ImageBuilt, ParentHash: "base"})
	mustCreate(t, db, CreateOpts{Hash: "leaf", Status: models.ImageBuilt, ParentHash: "mid"})

	count, err := Invalidate(db, "mid")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	base, _ := Get(db, "base")
	if base.Invalidated {
		t.Error("parent must not be invalidated by a child invalidation")
	}
}

func TestInvalidate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "leaf", Status: models.ImageBuilt, ParentHash: "base"})

	first, err := Invalidate(db, "base")
	if err != nil {
		t.Fatalf("first Invalidate: %v", err)
	}
	if first != 2 {
		t.Errorf("first count = %d, want 2", first)
	}

	second, err := Invalidate(db, "base")
	if err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	if second != 0 {
		t.Errorf("second count = %d, want 0", second)
	}
}

func TestInvalidate_UnknownHash(t *testing.T) {
	db := openTestDB(t)

	count, err := Invalidate(db, "ghost")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

// --- DependencyTree ---

func TestDependencyTree_ThreeLevelChain(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "mid", Status: models.ImageBuilt, ParentHash: "base"})
	mustCreate(t, db, CreateOpts{Hash: "leaf", Status: models.ImageBuilt, ParentHash: "mid"})

	tree, err := DependencyTree(db, "base")
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if tree.ImageID != "base" {
		t.Errorf("root = %q, want base", tree.ImageID)
	}
	if len(tree.Deps) != 1 {
		t.Fatalf("root deps = %d, want 1", len(tree.Deps))
	}
	mid := tree.Deps[0]
	if mid.ImageID != "mid" || len(mid.Deps) != 1 {
		t.Fatalf("mid = %q with %d deps, want mid with 1", mid.ImageID, len(mid.Deps))
	}
	leaf := mid.Deps[0]
	if leaf.ImageID != "leaf" {
		t.Errorf("leaf = %q, want leaf", leaf.ImageID)
	}
	if len(leaf.Deps) != 0 {
		t.Errorf("leaf deps = %d, want 0", len(leaf.Deps))
	}
}

func TestDependencyTree_Fanout(t *testing.T) {
	db := openTestDB(t)

	mustCreate(t, db, CreateOpts{Hash: "base", Status: models.ImageBase})
	mustCreate(t, db, CreateOpts{Hash: "a", Status: models.ImageBuilt, ParentHash: "base"})
	mustCreate(t, db, CreateOpts{Hash: "b", Status: models.ImageBuilt, ParentHash: "base"})

	tree, err := DependencyTree(db, "base")
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if len(tree.Deps) != 2 {
		t.Errorf("root deps = %d, want 2", len(tree.Deps))
	}
}

func TestDependencyTree_UnknownHash(t *testing.T) {
	db := openTestDB(t)

	_, err := DependencyTree(db, "ghost")
	if err == nil {
		t.Fatal("expected error for unknown hash")
	}
	if got := err.Error(); got != "image: not found: ghost" {
		t.Errorf("error = %q", got)
	}
}
