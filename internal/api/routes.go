package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/slipway/internal/image"
	"github.com/zulandar/slipway/internal/submit"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

var (
	buildRequired = []string{"git_url", "tag"}
	buildOptional = []string{"git_dockerfile_path", "git_commit", "git_path",
		"parent_registry", "target_registries", "repos", "owner"}
	moveRequired = []string{"source_registry", "target_registry", "tags"}
	moveOptional = []string{"owner"}
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/task/:id", handleTask(opts))
	router.GET("/tasks", handleTaskList(opts))
	router.GET("/image/:hash/status", handleImageStatus(opts.DB))
	router.GET("/image/:hash/info", handleImageInfo(opts.DB))
	router.GET("/image/:hash/deps", handleImageDeps(opts.DB))
	router.GET("/images", handleImageList(opts.DB))

	router.POST("/image/new", handleBuild(opts))
	router.POST("/image/rebuild/:hash", handleRebuild(opts))
	router.POST("/image/move/:hash", handleMove(opts))
	router.POST("/image/invalidate/:tag", handleInvalidate(opts))
}

func handleTask(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task id must be numeric"})
			return
		}
		t, err := task.Get(opts.DB, uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("task %d not found", id)})
			return
		}
		c.JSON(http.StatusOK, taskPayload(t, opts.ResultsRegistry))
	}
}

func handleTaskList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := task.List(opts.DB)
		if err != nil {
			renderError(c, err)
			return
		}
		out := make([]gin.H, 0, len(tasks))
		for i := range tasks {
			out = append(out, taskPayload(&tasks[i], opts.ResultsRegistry))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleImageStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		img, err := image.Get(db, hash)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("image %s not found", hash)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"image_id": img.Hash, "status": img.Status})
	}
}

func handleImageInfo(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		img, err := image.Get(db, hash)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("image %s not found", hash)})
			return
		}
		info, err := imageInfo(db, img)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleImageDeps(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		tree, err := image.DependencyTree(db, hash)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("image %s not found", hash)})
			return
		}
		c.JSON(http.StatusOK, tree)
	}
}

func handleImageList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		imgs, err := image.List(db)
		if err != nil {
			renderError(c, err)
			return
		}
		out := make([]gin.H, 0, len(imgs))
		for i := range imgs {
			info, err := imageInfo(db, &imgs[i])
			if err != nil {
				renderError(c, err)
				return
			}
			out = append(out, info)
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleBuild(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := bindBody(c, buildRequired, buildOptional)
		if err != nil {
			renderError(c, err)
			return
		}
		taskID, err := opts.Orchestrator.SubmitBuild(params, takeOwner(params, opts.Owner))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": taskID})
	}
}

func handleRebuild(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		// all build keys are optional; anything absent replays the original
		params, err := bindBody(c, nil, append(buildRequired, buildOptional...))
		if err != nil {
			renderError(c, err)
			return
		}
		taskID, err := opts.Orchestrator.SubmitRebuild(params, c.Param("hash"), takeOwner(params, opts.Owner))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": taskID})
	}
}

func handleMove(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := bindBody(c, moveRequired, moveOptional)
		if err != nil {
			renderError(c, err)
			return
		}
		taskID, err := opts.Orchestrator.SubmitMove(params, c.Param("hash"), takeOwner(params, opts.Owner))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": taskID})
	}
}

func handleInvalidate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := opts.Orchestrator.InvalidateTag(c.Param("tag"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Invalidated %d images.", n)})
	}
}

// takeOwner pops the optional owner key from the request parameters. Owner
// is plumbed separately so it never rides along in the stored payload.
func takeOwner(params map[string]interface{}, def string) string {
	owner, _ := params["owner"].(string)
	delete(params, "owner")
	if owner != "" {
		return owner
	}
	return def
}

// renderError maps the submission error taxonomy onto HTTP statuses.
// Anything unclassified becomes a generic internal-error payload.
func renderError(c *gin.Context, err error) {
	var verr *submit.ValidationError
	var nerr *submit.NotFoundError
	var serr *submit.SubmissionError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadGateway, gin.H{"error": serr.Error()})
	default:
		log.Printf("api: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
