package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/slipway/internal/ingest"
	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/notify"
	"github.com/zulandar/slipway/internal/task"
	"gorm.io/gorm"
)

// Executor runs the actual work for a claimed job. Build returns the raw
// result document that the ingest layer normalizes.
type Executor interface {
	Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
	Move(ctx context.Context, params map[string]interface{}) error
}

// staleRunningAfter is how long a job may sit in running before the runner
// assumes its worker died and returns it to the queue.
const staleRunningAfter = 2 * time.Hour

// Runner polls the queue and executes jobs on a fixed number of slots.
type Runner struct {
	DB           *gorm.DB
	Exec         Executor
	Notify       *notify.Notifier // optional
	Slots        int
	PollInterval time.Duration
}

// Run processes jobs until ctx is cancelled. It first replays any done jobs
// whose completion never reached the handlers, then settles into the poll
// loop. In-flight jobs are drained before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	slots := r.Slots
	if slots < 1 {
		slots = 1
	}
	interval := r.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	if n, err := Requeue(r.DB, staleRunningAfter); err != nil {
		log.Printf("queue: requeue stale jobs: %v", err)
	} else if n > 0 {
		log.Printf("queue: requeued %d stale jobs", n)
	}
	r.redeliver()

	sem := make(chan struct{}, slots)
	var wg sync.WaitGroup

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}

		for len(sem) < slots {
			job, err := Claim(r.DB)
			if err != nil {
				log.Printf("queue: claim: %v", err)
				break
			}
			if job == nil {
				break
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(j models.Job) {
				defer wg.Done()
				defer func() { <-sem }()
				r.runJob(ctx, j)
			}(*job)
		}
	}
}

// runJob executes one claimed job end to end: started signal, execution,
// durable result, delivery.
func (r *Runner) runJob(ctx context.Context, job models.Job) {
	task.MarkRunning(r.DB, job.TaskID)

	result, err := r.execute(ctx, job)
	if err != nil {
		log.Printf("queue: job %s: %v", job.ID, err)
	}
	if err := Finish(r.DB, job.ID, result); err != nil {
		log.Printf("queue: job %s: %v", job.ID, err)
		return
	}
	r.deliver(job.ID, job.Kind, job.TaskID, result)
}

func (r *Runner) execute(ctx context.Context, job models.Job) (string, error) {
	params := map[string]interface{}{}
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &params); err != nil {
			return "", fmt.Errorf("queue: job %s: bad payload: %w", job.ID, err)
		}
	}

	switch job.Kind {
	case models.KindBuild:
		raw, err := r.Exec.Build(ctx, params)
		if err != nil {
			if raw == nil {
				raw = map[string]interface{}{}
			}
			raw["build_log"] = append(rawLog(raw), err.Error())
		}
		data, merr := json.Marshal(raw)
		if merr != nil {
			return "", fmt.Errorf("queue: job %s: encode result: %w", job.ID, merr)
		}
		return string(data), err
	case models.KindMove:
		res := ingest.MoveResult{}
		err := r.Exec.Move(ctx, params)
		if err != nil {
			res.Error = err.Error()
		}
		data, merr := json.Marshal(res)
		if merr != nil {
			return "", fmt.Errorf("queue: job %s: encode result: %w", job.ID, merr)
		}
		return string(data), err
	default:
		return "", fmt.Errorf("queue: job %s: unknown kind %q", job.ID, job.Kind)
	}
}

func rawLog(raw map[string]interface{}) []interface{} {
	switch v := raw["build_log"].(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	}
	return nil
}

// deliver hands a finished job's result to the completion handlers. Handler
// errors are logged but the job is still marked delivered; replay only
// covers crashes between finishing and delivering.
func (r *Runner) deliver(jobID, kind string, taskID uint, result string) {
	var err error
	switch kind {
	case models.KindBuild:
		var res *ingest.BuildResult
		res, err = ingest.ParseBuildResult(result)
		if err == nil {
			err = ingest.OnBuildComplete(r.DB, taskID, res)
		}
	case models.KindMove:
		var res *ingest.MoveResult
		res, err = ingest.ParseMoveResult(result)
		if err == nil {
			err = ingest.OnMoveComplete(r.DB, taskID, res)
		}
	default:
		err = fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		log.Printf("queue: deliver job %s: %v", jobID, err)
	}
	if err := MarkDelivered(r.DB, jobID); err != nil {
		log.Printf("queue: deliver job %s: %v", jobID, err)
	}

	if r.Notify != nil && err == nil {
		if t, terr := task.Get(r.DB, taskID); terr == nil && models.TerminalStatus(t.Status) {
			r.Notify.TaskFinished(context.Background(), t)
		}
	}
}

// redeliver replays completions for done jobs that were never delivered.
func (r *Runner) redeliver() {
	jobs, err := Undelivered(r.DB)
	if err != nil {
		log.Printf("queue: %v", err)
		return
	}
	for _, j := range jobs {
		log.Printf("queue: redelivering job %s for task %d", j.ID, j.TaskID)
		r.deliver(j.ID, j.Kind, j.TaskID, j.Result)
	}
}
