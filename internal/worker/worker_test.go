package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
)

// fakeRunner lets tests script the transform's behavior.
type fakeRunner struct {
	run func(ctx context.Context, inputPath, workDir string) error
}

func (r *fakeRunner) Run(ctx context.Context, inputPath, workDir string) error {
	return r.run(ctx, inputPath, workDir)
}

type workerEnv struct {
	cfg    *config.Config
	jobs   *store.JobStore
	usage  *store.UsageStore
	guests *store.GuestStore
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Processing: config.ProcessingConfig{
			OutputDir:   t.TempDir(),
			ModelName:   "TestModel",
			HardTimeout: time.Minute,
		},
	}
	return &workerEnv{
		cfg:    cfg,
		jobs:   store.NewJobStore(rdb),
		usage:  store.NewUsageStore(rdb),
		guests: store.NewGuestStore(rdb),
	}
}

// createJob persists a pending job with a real input file on disk.
func (env *workerEnv) createJob(t *testing.T, guestID string) *model.Job {
	t.Helper()

	inputDir := t.TempDir()
	inputPath := filepath.Join(inputDir, "input.wav")
	if err := os.WriteFile(inputPath, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	now := time.Now()
	job := &model.Job{
		JobID:            uuid.New().String(),
		Filename:         "stored.wav",
		OriginalFilename: "voice.wav",
		FileSize:         15,
		FileFormat:       "wav",
		InputFilePath:    inputPath,
		GuestID:          guestID,
		Status:           model.JobStatusPending,
		ProcessingType:   model.ProcessingSpeechEnhancement,
		CreatedAt:        now,
		ExpiresAt:        now.Add(24 * time.Hour),
	}
	if err := env.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func mustProcessTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	task, err := NewProcessTask(jobID)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}
