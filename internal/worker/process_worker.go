package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/hibiken/asynq"

	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/enhance"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
	ws "github.com/whazzaudio/api/internal/websocket"
)

// Progress checkpoints. The external transform reports no progress, so
// the job advances at fixed points in the pipeline.
const (
	progressClaimed   = 5
	progressValidated = 10
	progressPrepared  = 20
	progressRunning   = 50
	progressLocated   = 90
)

// ProcessWorker drives one job from pending through processing to a
// terminal state. One job is in flight per worker slot; the claim is
// guarded at the storage layer so a redelivered task cannot silently
// re-run a job.
type ProcessWorker struct {
	cfg    *config.Config
	jobs   *store.JobStore
	usage  *store.UsageStore
	runner enhance.Runner
	hub    *ws.Hub // may be nil
}

func NewProcessWorker(cfg *config.Config, jobs *store.JobStore, usage *store.UsageStore, runner enhance.Runner, hub *ws.Hub) *ProcessWorker {
	return &ProcessWorker{
		cfg:    cfg,
		jobs:   jobs,
		usage:  usage,
		runner: runner,
		hub:    hub,
	}
}

// ProcessTask handles an audio:process task.
func (w *ProcessWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal process payload: %w", err)
	}
	jobID := payload.JobID
	log.Printf("Processing job %s", jobID)

	job, err := w.jobs.Claim(ctx, jobID, time.Now(), progressClaimed)
	switch err {
	case nil:
	case store.ErrNotFound:
		// Enqueue/claim race; must be surfaced, never swallowed.
		return fmt.Errorf("job %s not found: %w", jobID, err)
	case store.ErrAlreadyClaimed:
		// Redelivery of an in-flight job. The transform is not safely
		// re-entrant on partially written output, so surface it.
		return fmt.Errorf("job %s: %w", jobID, err)
	case store.ErrAlreadyFinished:
		log.Printf("Job %s already finished, skipping redelivery", jobID)
		return nil
	default:
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	w.checkpoint(ctx, job, progressClaimed)

	outputPath, err := w.process(ctx, job)
	if err != nil {
		w.failJob(ctx, job, err)
		// Propagate so the queue's own failure bookkeeping applies.
		return err
	}

	completedAt := time.Now()
	applied, err := w.jobs.Complete(ctx, job.JobID, outputPath, completedAt)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.JobID, err)
	}
	if !applied {
		log.Printf("Job %s reached a terminal state concurrently, not recording usage", job.JobID)
		return nil
	}

	var outputSize int64
	if fi, err := os.Stat(outputPath); err == nil {
		outputSize = fi.Size()
	}
	duration := processingDuration(job.StartedAt, completedAt)
	key := model.OwnerKey(job.UserID, job.GuestID)
	if err := w.usage.RecordProcessingResult(ctx, key, duration, outputSize, true); err != nil {
		log.Printf("Failed to record usage for job %s: %v", job.JobID, err)
	}

	if w.hub != nil {
		w.hub.BroadcastDone(job.JobID, model.JobStatusCompleted, true, "")
	}
	log.Printf("Job %s completed in %.1fs", job.JobID, duration)
	return nil
}

// process runs steps 3-6 of the pipeline: validate input, run the
// transform inside a per-job working directory, locate the artifact,
// and move it to the job's canonical output path.
func (w *ProcessWorker) process(ctx context.Context, job *model.Job) (string, error) {
	if _, err := os.Stat(job.InputFilePath); err != nil {
		return "", fmt.Errorf("input file not found: %s", job.InputFilePath)
	}
	w.checkpoint(ctx, job, progressValidated)

	// Per-job working directory keeps concurrent workers from racing
	// on output discovery.
	workDir := filepath.Join(w.cfg.Processing.OutputDir, job.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	w.checkpoint(ctx, job, progressPrepared)

	before := enhance.Snapshot(workDir)
	w.checkpoint(ctx, job, progressRunning)

	runCtx := ctx
	if w.cfg.Processing.HardTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.Processing.HardTimeout)
		defer cancel()
	}
	if err := w.runner.Run(runCtx, job.InputFilePath, workDir); err != nil {
		return "", err
	}

	artifact, err := enhance.DiscoverOutput(workDir, w.cfg.Processing.ModelName, before)
	if err != nil {
		return "", err
	}
	w.checkpoint(ctx, job, progressLocated)

	finalPath := filepath.Join(w.cfg.Processing.OutputDir, "processed_"+job.Filename)
	if err := os.Rename(artifact, finalPath); err != nil {
		return "", fmt.Errorf("move output file: %w", err)
	}

	if err := os.RemoveAll(workDir); err != nil {
		log.Printf("Failed to remove work dir %s: %v", workDir, err)
	}
	return finalPath, nil
}

// failJob applies the terminal failure transition and records the
// failed-processing usage event, once.
func (w *ProcessWorker) failJob(ctx context.Context, job *model.Job, cause error) {
	errMsg := fmt.Sprintf("%v\n%s", cause, debug.Stack())
	completedAt := time.Now()

	applied, err := w.jobs.Fail(ctx, job.JobID, errMsg, completedAt)
	if err != nil {
		log.Printf("Failed to mark job %s as failed: %v", job.JobID, err)
		return
	}
	if !applied {
		return
	}

	duration := processingDuration(job.StartedAt, completedAt)
	key := model.OwnerKey(job.UserID, job.GuestID)
	if err := w.usage.RecordProcessingResult(ctx, key, duration, 0, false); err != nil {
		log.Printf("Failed to record usage for job %s: %v", job.JobID, err)
	}

	if w.hub != nil {
		w.hub.BroadcastDone(job.JobID, model.JobStatusFailed, false, cause.Error())
	}
	log.Printf("Job %s failed: %v", job.JobID, cause)
}

func (w *ProcessWorker) checkpoint(ctx context.Context, job *model.Job, progress float64) {
	if err := w.jobs.SetProgress(ctx, job.JobID, progress); err != nil {
		log.Printf("Failed to checkpoint progress for job %s: %v", job.JobID, err)
	}
	if w.hub != nil {
		w.hub.BroadcastProgress(job.JobID, model.JobStatusProcessing, progress)
	}
}

func processingDuration(startedAt *time.Time, completedAt time.Time) float64 {
	if startedAt == nil {
		return 0
	}
	return completedAt.Sub(*startedAt).Seconds()
}
