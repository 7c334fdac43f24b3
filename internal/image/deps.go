package image

import (
	"fmt"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// Children returns the hashes of images whose parent is the given hash, in
// stable (hash) order.
func Children(db *gorm.DB, hash string) ([]string, error) {
	var hashes []string
	if err := db.Model(&models.Image{}).
		Where("parent_hash = ?", hash).
		Order("hash ASC").
		Pluck("hash", &hashes).Error; err != nil {
		return nil, fmt.Errorf("image: children of %s: %w", hash, err)
	}
	return hashes, nil
}

// Invalidate marks the image and every descendant reachable through parent
// links as invalidated, and returns the count of images newly marked. The
// flag is monotone, so re-invalidating an already-invalidated subtree
// returns 0; an unknown hash is a no-op, not an error.
//
// The traversal re-reads child sets on each pop, so an image created under
// the subtree mid-walk is either picked up or left for a later call; at
// worst an already-invalidated node is revisited, which changes nothing.
func Invalidate(db *gorm.DB, hash string) (int, error) {
	count := 0
	worklist := []string{hash}
	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]

		result := db.Model(&models.Image{}).
			Where("hash = ? AND invalidated = ?", current, false).
			Update("invalidated", true)
		if result.Error != nil {
			return count, fmt.Errorf("image: invalidate %s: %w", current, result.Error)
		}
		count += int(result.RowsAffected)

		children, err := Children(db, current)
		if err != nil {
			return count, err
		}
		worklist = append(worklist, children...)
	}
	return count, nil
}

// TreeNode is one node of a dependency tree.
type TreeNode struct {
	ImageID string      `json:"image_id"`
	Deps    []*TreeNode `json:"deps"`
}

// DependencyTree returns the nested dependency structure rooted at hash.
// Parent links are assigned once at creation and never mutated, so the graph
// cannot cycle by construction; a visited set guards the walk anyway.
func DependencyTree(db *gorm.DB, hash string) (*TreeNode, error) {
	var img models.Image
	if err := db.Where("hash = ?", hash).First(&img).Error; err != nil {
		return nil, fmt.Errorf("image: not found: %s", hash)
	}
	visited := make(map[string]bool)
	return subtree(db, hash, visited)
}

func subtree(db *gorm.DB, hash string, visited map[string]bool) (*TreeNode, error) {
	node := &TreeNode{ImageID: hash, Deps: []*TreeNode{}}
	if visited[hash] {
		return node, nil
	}
	visited[hash] = true

	children, err := Children(db, hash)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := subtree(db, child, visited)
		if err != nil {
			return nil, err
		}
		node.Deps = append(node.Deps, sub)
	}
	return node, nil
}
