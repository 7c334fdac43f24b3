package api

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/slipway/internal/image"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/submit"
	"gorm.io/gorm"
)

// bindBody decodes a JSON object body and enforces the endpoint's key set:
// an unrecognized key or a missing required key is a request error. An empty
// body is treated as an empty object.
func bindBody(c *gin.Context, required, optional []string) (map[string]interface{}, error) {
	params := map[string]interface{}{}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, &submit.ValidationError{Field: "body", Reason: "unreadable"}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, &submit.ValidationError{Field: "body", Reason: "must be a JSON object"}
		}
	}

	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}

	unknown := []string{}
	for k := range params {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &submit.ValidationError{Field: unknown[0], Reason: "unrecognized parameter"}
	}

	for _, k := range required {
		if _, ok := params[k]; !ok {
			return nil, &submit.ValidationError{Field: k, Reason: "is required"}
		}
	}
	return params, nil
}

// taskPayload is the task status document. The pull instruction appears only
// once an image is linked.
func taskPayload(t *models.Task, registry string) gin.H {
	h := gin.H{
		"id":         t.ID,
		"status":     t.Status,
		"kind":       t.Kind,
		"owner":      t.Owner,
		"build_env":  t.BuildEnv,
		"created_at": t.CreatedAt,
	}
	if t.FinishedAt != nil {
		h["finished_at"] = t.FinishedAt
	}
	if t.Image != nil {
		h["image_hash"] = t.Image.Hash
		if msg := pullMessage(registry, t); msg != "" {
			h["message"] = msg
		}
	}
	return h
}

// pullMessage builds the human pull instruction from the request's target
// tag. Tasks without a tag in their payload get no message.
func pullMessage(registry string, t *models.Task) string {
	if t.Payload == "" || registry == "" {
		return ""
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(t.Payload), &params); err != nil {
		return ""
	}
	tag, _ := params["tag"].(string)
	if tag == "" {
		return ""
	}
	return fmt.Sprintf("Image is built. Pull it with: docker pull %s/%s/%s", registry, t.Owner, tag)
}

// imageInfo is the full image document served by info and images.
func imageInfo(db *gorm.DB, img *models.Image) (gin.H, error) {
	packages, err := image.OrderedPackages(db, img.Hash)
	if err != nil {
		return nil, err
	}
	tags, err := image.TagNames(db, img.Hash)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"hash":           img.Hash,
		"status":         img.Status,
		"is_invalidated": img.Invalidated,
		"packages":       packages,
		"tags":           tags,
		"parent_hash":    img.ParentHash,
		"built_on":       img.CreatedAt,
	}, nil
}
