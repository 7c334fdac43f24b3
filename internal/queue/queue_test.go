package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/slipway/internal/models"
	"github.com/zulandar/slipway/internal/notify"
	"github.com/zulandar/slipway/internal/submit"
	"github.com/zulandar/slipway/internal/task"
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
		&models.RPM{}, &models.Tag{}, &models.ImageTag{}, &models.Job{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTask(t *testing.T, db *gorm.DB, kind string) *models.Task {
	t.Helper()
	tk, err := task.Create(db, task.CreateOpts{Kind: kind, Owner: "alice"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

// --- Store ---

func TestSubmitCreatesQueuedJob(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)

	s := &Store{DB: db}
	id, err := s.Submit(submit.Job{Kind: models.KindBuild, TaskID: tk.ID, Params: `{"tag":"v1"}`})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected a job id")
	}

	var row models.Job
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if row.Status != models.JobQueued {
		t.Errorf("status = %q, want %q", row.Status, models.JobQueued)
	}
	if row.TaskID != tk.ID {
		t.Errorf("task id = %d, want %d", row.TaskID, tk.ID)
	}
	if row.Payload != `{"tag":"v1"}` {
		t.Errorf("payload = %q", row.Payload)
	}
	if row.Delivered {
		t.Error("new job should not be delivered")
	}
}

func TestSubmitRequiresTask(t *testing.T) {
	db := openTestDB(t)
	s := &Store{DB: db}
	if _, err := s.Submit(submit.Job{Kind: models.KindBuild}); err == nil {
		t.Fatal("expected error for missing task id")
	}
}

// --- Claim ---

func TestClaimEmptyQueue(t *testing.T) {
	db := openTestDB(t)
	job, err := Claim(db)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %v from empty queue", job)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)

	older := models.Job{ID: "job-old", Kind: models.KindBuild, TaskID: tk.ID,
		Status: models.JobQueued, CreatedAt: time.Now().Add(-time.Minute)}
	newer := models.Job{ID: "job-new", Kind: models.KindBuild, TaskID: tk.ID,
		Status: models.JobQueued, CreatedAt: time.Now()}
	for _, j := range []models.Job{newer, older} {
		if err := db.Create(&j).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	job, err := Claim(db)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != "job-old" {
		t.Fatalf("claimed %v, want job-old", job)
	}
	if job.Status != models.JobRunning {
		t.Errorf("status = %q, want %q", job.Status, models.JobRunning)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	if job.StartedAt == nil {
		t.Error("started_at not set")
	}

	// claimed job must not be claimable again
	second, err := Claim(db)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if second == nil || second.ID != "job-new" {
		t.Fatalf("second claim = %v, want job-new", second)
	}
	third, err := Claim(db)
	if err != nil {
		t.Fatalf("third Claim: %v", err)
	}
	if third != nil {
		t.Fatalf("third claim = %v, want nil", third)
	}
}

// --- Finish / delivery bookkeeping ---

func TestFinishStoresResult(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)
	s := &Store{DB: db}
	id, _ := s.Submit(submit.Job{Kind: models.KindBuild, TaskID: tk.ID})

	if _, err := Claim(db); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := Finish(db, id, `{"ok":true}`); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var row models.Job
	db.First(&row, "id = ?", id)
	if row.Status != models.JobDone {
		t.Errorf("status = %q, want %q", row.Status, models.JobDone)
	}
	if row.Result != `{"ok":true}` {
		t.Errorf("result = %q", row.Result)
	}
	if row.FinishedAt == nil {
		t.Error("finished_at not set")
	}

	if err := Finish(db, "no-such-job", ""); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestUndeliveredAndMarkDelivered(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)
	s := &Store{DB: db}
	id, _ := s.Submit(submit.Job{Kind: models.KindBuild, TaskID: tk.ID})
	Claim(db)
	Finish(db, id, `{}`)

	jobs, err := Undelivered(db)
	if err != nil {
		t.Fatalf("Undelivered: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("undelivered = %v, want [%s]", jobs, id)
	}

	if err := MarkDelivered(db, id); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	jobs, _ = Undelivered(db)
	if len(jobs) != 0 {
		t.Fatalf("undelivered after mark = %v", jobs)
	}

	if err := MarkDelivered(db, "no-such-job"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestRequeueStale(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)

	old := time.Now().Add(-3 * time.Hour)
	fresh := time.Now()
	stale := models.Job{ID: "stale", Kind: models.KindBuild, TaskID: tk.ID,
		Status: models.JobRunning, StartedAt: &old}
	active := models.Job{ID: "active", Kind: models.KindBuild, TaskID: tk.ID,
		Status: models.JobRunning, StartedAt: &fresh}
	for _, j := range []models.Job{stale, active} {
		if err := db.Create(&j).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	n, err := Requeue(db, 2*time.Hour)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued %d jobs, want 1", n)
	}

	var row models.Job
	db.First(&row, "id = ?", "stale")
	if row.Status != models.JobQueued {
		t.Errorf("stale job status = %q, want %q", row.Status, models.JobQueued)
	}
	row = models.Job{}
	db.First(&row, "id = ?", "active")
	if row.Status != models.JobRunning {
		t.Errorf("active job status = %q, want %q", row.Status, models.JobRunning)
	}
}

// --- Runner ---

type fakeExec struct {
	buildResult map[string]interface{}
	buildErr    error
	moveErr     error
	gotParams   map[string]interface{}
}

func (f *fakeExec) Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	f.gotParams = params
	return f.buildResult, f.buildErr
}

func (f *fakeExec) Move(ctx context.Context, params map[string]interface{}) error {
	f.gotParams = params
	return f.moveErr
}

func submitAndClaim(t *testing.T, db *gorm.DB, kind, params string) models.Job {
	t.Helper()
	tk := newTask(t, db, kind)
	s := &Store{DB: db}
	if _, err := s.Submit(submit.Job{Kind: kind, TaskID: tk.ID, Params: params}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job, err := Claim(db)
	if err != nil || job == nil {
		t.Fatalf("Claim: %v %v", job, err)
	}
	return *job
}

func TestRunJobBuildSuccess(t *testing.T) {
	db := openTestDB(t)
	exec := &fakeExec{buildResult: map[string]interface{}{
		"built_img_info": map[string]interface{}{"Id": "abc", "RepoTags": []interface{}{"alice/v1"}},
		"base_img_info":  map[string]interface{}{"Id": "base1"},
	}}
	r := &Runner{DB: db, Exec: exec}

	job := submitAndClaim(t, db, models.KindBuild, `{"tag":"v1"}`)
	r.runJob(context.Background(), job)

	if exec.gotParams["tag"] != "v1" {
		t.Errorf("executor params = %v", exec.gotParams)
	}

	tk, err := task.Get(db, job.TaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tk.Status != models.TaskSucceeded {
		t.Errorf("task status = %q, want %q", tk.Status, models.TaskSucceeded)
	}
	if tk.Image == nil || tk.Image.Hash != "abc" {
		t.Errorf("task image = %v, want abc", tk.Image)
	}

	var row models.Job
	db.First(&row, "id = ?", job.ID)
	if row.Status != models.JobDone || !row.Delivered {
		t.Errorf("job = %q delivered=%v, want done/delivered", row.Status, row.Delivered)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(row.Result), &raw); err != nil {
		t.Fatalf("stored result is not JSON: %v", err)
	}
}

func TestRunJobBuildExecutorError(t *testing.T) {
	db := openTestDB(t)
	exec := &fakeExec{buildErr: errors.New("buildroot exploded")}
	r := &Runner{DB: db, Exec: exec}

	job := submitAndClaim(t, db, models.KindBuild, `{}`)
	r.runJob(context.Background(), job)

	tk, err := task.Get(db, job.TaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tk.Status != models.TaskFailed {
		t.Errorf("task status = %q, want %q", tk.Status, models.TaskFailed)
	}
	if tk.Log == "" || tk.Log != "buildroot exploded" {
		t.Errorf("task log = %q, want executor error", tk.Log)
	}
}

func TestRunJobMove(t *testing.T) {
	db := openTestDB(t)
	r := &Runner{DB: db, Exec: &fakeExec{}}

	job := submitAndClaim(t, db, models.KindMove, `{"source_registry":"r1","target_registry":"r2","tags":["alice/app:v1"]}`)
	r.runJob(context.Background(), job)

	tk, _ := task.Get(db, job.TaskID)
	if tk.Status != models.TaskSucceeded {
		t.Errorf("task status = %q, want %q", tk.Status, models.TaskSucceeded)
	}
}

func TestRunJobMoveError(t *testing.T) {
	db := openTestDB(t)
	r := &Runner{DB: db, Exec: &fakeExec{moveErr: errors.New("push denied")}}

	job := submitAndClaim(t, db, models.KindMove, `{}`)
	r.runJob(context.Background(), job)

	tk, _ := task.Get(db, job.TaskID)
	if tk.Status != models.TaskFailed {
		t.Errorf("task status = %q, want %q", tk.Status, models.TaskFailed)
	}
	if tk.Log != "push denied" {
		t.Errorf("task log = %q, want push error", tk.Log)
	}
}

func TestRedeliverReplaysCompletion(t *testing.T) {
	db := openTestDB(t)
	tk := newTask(t, db, models.KindBuild)

	// a job that finished but whose completion never landed
	result := `{"built_img_info":{"Id":"abc"},"base_img_info":{"Id":"base1"}}`
	now := time.Now()
	row := models.Job{ID: "job-1", Kind: models.KindBuild, TaskID: tk.ID,
		Status: models.JobDone, Result: result, FinishedAt: &now}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	r := &Runner{DB: db, Exec: &fakeExec{}}
	r.redeliver()

	got, err := task.Get(db, tk.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskSucceeded {
		t.Errorf("task status = %q, want %q", got.Status, models.TaskSucceeded)
	}

	var after models.Job
	db.First(&after, "id = ?", "job-1")
	if !after.Delivered {
		t.Error("job not marked delivered after redeliver")
	}
}

func TestRunJobPostsNotification(t *testing.T) {
	db := openTestDB(t)
	mock := notify.NewMockAdapter()
	exec := &fakeExec{buildResult: map[string]interface{}{
		"built_img_info": map[string]interface{}{"Id": "abc"},
		"base_img_info":  map[string]interface{}{"Id": "base1"},
	}}
	r := &Runner{DB: db, Exec: exec, Notify: &notify.Notifier{DB: db, Adapter: mock}}

	job := submitAndClaim(t, db, models.KindBuild, `{}`)
	r.runJob(context.Background(), job)

	posted := mock.Posted()
	if len(posted) != 1 {
		t.Fatalf("posted %d events, want 1", len(posted))
	}
	if posted[0].Severity != "success" {
		t.Errorf("severity = %q", posted[0].Severity)
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	db := openTestDB(t)
	r := &Runner{DB: db, Exec: &fakeExec{}, Slots: 1, PollInterval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
