package web

import (
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

// registerRoutes sets up all web routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	router.GET("/", handleIndex(db))
	router.GET("/tasks", handleTasks(db))
	router.GET("/tasks/:id", handleTaskDetail(db))
	router.GET("/images", handleImages(db))
	router.GET("/images/:hash", handleImageDetail(db))
}

func handleIndex(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := Summary(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{"Summary": summary})
	}
}

func handleTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := TaskRows(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.HTML(http.StatusOK, "tasks.html", gin.H{"Tasks": rows})
	}
}

func handleTaskDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusNotFound, "no such task")
			return
		}
		t, err := task.Get(db, uint(id))
		if err != nil {
			c.String(http.StatusNotFound, "no such task")
			return
		}
		c.HTML(http.StatusOK, "task.html", gin.H{"Task": t})
	}
}

func handleImages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ImageRows(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.HTML(http.StatusOK, "images.html", gin.H{"Images": rows})
	}
}

func handleImageDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := ImagePage(db, c.Param("hash"))
		if err != nil {
			c.String(http.StatusNotFound, "no such image")
			return
		}
		c.HTML(http.StatusOK, "image.html", gin.H{"Image": detail})
	}
}
