// Package submit orchestrates build, rebuild, move and invalidate requests:
// it creates the durable task record, hands the work to the queue, and
// returns the task handle without waiting for execution.
package submit

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/zulandar/slipway/internal/image"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

// Job describes one unit of asynchronous work handed to the queue. Params
// carry the request parameters plus derived build settings.
type Job struct {
	Kind   string // models.KindBuild or models.KindMove
	TaskID uint
	Params string // JSON
}

// Queue is the worker-queue boundary: enqueue a job, get its handle back.
// Execution happens elsewhere; completion arrives through the ingest
// handlers.
type Queue interface {
	Submit(job Job) (string, error)
}

// CommitPinner resolves a git ref to a concrete commit for job parameters.
// Implementations are best-effort; ok=false leaves the job untouched.
type CommitPinner interface {
	Pin(gitURL, ref string) (sha string, ok bool)
}

// Orchestrator accepts requests and turns them into pending tasks plus
// queued jobs. The queue is injected; there is no process-wide client.
type Orchestrator struct {
	DB         *gorm.DB
	Queue      Queue
	BuildImage string       // buildroot the build job runs in, recorded on the task
	Pinner     CommitPinner // optional
}

// SubmitBuild validates build parameters, persists them verbatim on a new
// pending task, and enqueues the build job. The returned id is the task
// handle the caller polls.
func (o *Orchestrator) SubmitBuild(params map[string]interface{}, owner string) (uint, error) {
	if owner == "" {
		return 0, &ValidationError{Field: "owner", Reason: "is required"}
	}
	gitURL, _ := params["git_url"].(string)
	if gitURL == "" {
		return 0, &ValidationError{Field: "git_url", Reason: "is required"}
	}
	tag, _ := params["tag"].(string)
	if tag == "" {
		return 0, &ValidationError{Field: "tag", Reason: "is required"}
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("submit: encode payload: %w", err)
	}

	t, err := task.Create(o.DB, task.CreateOpts{
		Kind:     models.KindBuild,
		Owner:    owner,
		BuildEnv: o.BuildImage,
		Payload:  string(payload),
	})
	if err != nil {
		return 0, err
	}

	// Job parameters extend the request with derived build settings. The
	// stored payload stays verbatim for rebuild replay.
	jobParams := make(map[string]interface{}, len(params)+3)
	for k, v := range params {
		jobParams[k] = v
	}
	jobParams["build_image"] = o.BuildImage
	jobParams["local_tag"] = fmt.Sprintf("%s/%s", owner, tag)
	o.pinCommit(jobParams, gitURL)

	if err := o.enqueue(t.ID, models.KindBuild, jobParams); err != nil {
		return 0, err
	}
	return t.ID, nil
}

// SubmitRebuild replays the original build request of the image's owning
// task, with the caller's parameters merged over it (caller keys win).
func (o *Orchestrator) SubmitRebuild(params map[string]interface{}, imageHash, owner string) (uint, error) {
	img, err := image.Get(o.DB, imageHash)
	if err != nil {
		return 0, &NotFoundError{Message: "image does not exist or was not built from a task"}
	}
	if img.TaskID == nil {
		return 0, &NotFoundError{Message: "image does not exist or was not built from a task"}
	}

	orig, err := task.Get(o.DB, *img.TaskID)
	if err != nil {
		return 0, &NotFoundError{Message: "image does not exist or was not built from a task"}
	}

	merged := make(map[string]interface{})
	if orig.Payload != "" {
		if err := json.Unmarshal([]byte(orig.Payload), &merged); err != nil {
			return 0, fmt.Errorf("submit: decode original payload of task %d: %w", orig.ID, err)
		}
	}
	for k, v := range params {
		merged[k] = v
	}
	return o.SubmitBuild(merged, owner)
}

// SubmitMove validates move parameters and enqueues a push job for the
// image. Tags must be a list, not a scalar.
func (o *Orchestrator) SubmitMove(params map[string]interface{}, imageHash, owner string) (uint, error) {
	if owner == "" {
		return 0, &ValidationError{Field: "owner", Reason: "is required"}
	}
	if s, _ := params["source_registry"].(string); s == "" {
		return 0, &ValidationError{Field: "source_registry", Reason: "is required"}
	}
	if s, _ := params["target_registry"].(string); s == "" {
		return 0, &ValidationError{Field: "target_registry", Reason: "is required"}
	}
	tags, err := tagList(params["tags"])
	if err != nil {
		return 0, err
	}

	payload := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["image_id"] = imageHash
	payload["tags"] = tags

	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("submit: encode payload: %w", err)
	}

	t, err := task.Create(o.DB, task.CreateOpts{
		Kind:    models.KindMove,
		Owner:   owner,
		Payload: string(encoded),
	})
	if err != nil {
		return 0, err
	}

	if err := o.enqueue(t.ID, models.KindMove, payload); err != nil {
		return 0, err
	}
	return t.ID, nil
}

// Invalidate marks the image and all its descendants invalidated, returning
// the count of images newly marked.
func (o *Orchestrator) Invalidate(imageHash string) (int, error) {
	return image.Invalidate(o.DB, imageHash)
}

// InvalidateTag invalidates every image carrying the tag, plus descendants.
func (o *Orchestrator) InvalidateTag(tagName string) (int, error) {
	imgs, err := image.ByTag(o.DB, tagName)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, img := range imgs {
		n, err := image.Invalidate(o.DB, img.Hash)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (o *Orchestrator) enqueue(taskID uint, kind string, params map[string]interface{}) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("submit: encode job params: %w", err)
	}
	jobID, err := o.Queue.Submit(Job{Kind: kind, TaskID: taskID, Params: string(encoded)})
	if err != nil {
		// The task stays pending with no external job id, eligible for
		// manual resubmission.
		return &SubmissionError{TaskID: taskID, Err: err}
	}
	return task.SetExternalJob(o.DB, taskID, jobID)
}

// pinCommit resolves a floating git ref to a concrete commit in the job
// parameters. Best-effort: no pinner, a pinned commit already present, or a
// failed lookup all leave the parameters as they were.
func (o *Orchestrator) pinCommit(jobParams map[string]interface{}, gitURL string) {
	if o.Pinner == nil {
		return
	}
	if c, _ := jobParams["git_commit"].(string); c != "" {
		return
	}
	if sha, ok := o.Pinner.Pin(gitURL, ""); ok {
		jobParams["git_commit"] = sha
		log.Printf("submit: pinned %s to %s", gitURL, sha)
	}
}

// tagList coerces the request's tags value into a string list. A scalar is
// a request error, matching the worker's refusal of non-iterable tags.
func tagList(v interface{}) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			items = make([]interface{}, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return nil, &ValidationError{Field: "tags", Reason: "must be a list"}
		}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "tags", Reason: "must not be empty"}
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, &ValidationError{Field: "tags", Reason: "must be a list of non-empty strings"}
		}
		tags = append(tags, s)
	}
	return tags, nil
}
