package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whazzaudio/api/internal/model"
)

func newTestJob(guestID string) *model.Job {
	now := time.Now()
	return &model.Job{
		JobID:            uuid.New().String(),
		Filename:         "stored.wav",
		OriginalFilename: "original.wav",
		FileSize:         2048,
		FileFormat:       "wav",
		InputFilePath:    "/tmp/stored.wav",
		GuestID:          guestID,
		Status:           model.JobStatusPending,
		ProcessingType:   model.ProcessingSpeechEnhancement,
		CreatedAt:        now,
		ExpiresAt:        now.Add(24 * time.Hour),
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.ID == 0 {
		t.Error("expected a sequence id to be assigned")
	}

	got, err := jobs.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobStatusPending {
		t.Errorf("expected status pending, got %s", got.Status)
	}
	if got.OriginalFilename != "original.wav" {
		t.Errorf("unexpected original filename %q", got.OriginalFilename)
	}
	if got.GuestID != "guest-1" {
		t.Errorf("unexpected guest id %q", got.GuestID)
	}

	if _, err := jobs.Get(ctx, "no-such-job"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobStore_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := jobs.Claim(ctx, job.JobID, time.Now(), 5)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claimed.Status != model.JobStatusProcessing {
		t.Errorf("expected processing after claim, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
	if claimed.Progress != 5 {
		t.Errorf("expected progress 5, got %v", claimed.Progress)
	}

	// Redelivery of an in-flight job
	if _, err := jobs.Claim(ctx, job.JobID, time.Now(), 5); err != ErrAlreadyClaimed {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	// Unknown job
	if _, err := jobs.Claim(ctx, "no-such-job", time.Now(), 5); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobStore_ClaimFinishedJob(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Claim(ctx, job.JobID, time.Now(), 5); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := jobs.Complete(ctx, job.JobID, "/tmp/out.wav", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := jobs.Claim(ctx, job.JobID, time.Now(), 5); err != ErrAlreadyFinished {
		t.Errorf("expected ErrAlreadyFinished, got %v", err)
	}
}

func TestJobStore_TerminalTransitionAppliesOnce(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Claim(ctx, job.JobID, time.Now(), 5); err != nil {
		t.Fatalf("claim: %v", err)
	}

	applied, err := jobs.Complete(ctx, job.JobID, "/tmp/out.wav", time.Now())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !applied {
		t.Error("first terminal transition should apply")
	}

	// Second completion and a late failure must both be no-ops.
	applied, err = jobs.Complete(ctx, job.JobID, "/tmp/other.wav", time.Now())
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if applied {
		t.Error("second terminal transition must not apply")
	}
	applied, err = jobs.Fail(ctx, job.JobID, "late failure", time.Now())
	if err != nil {
		t.Fatalf("fail after complete: %v", err)
	}
	if applied {
		t.Error("failure after completion must not apply")
	}

	got, err := jobs.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.OutputFilePath != "/tmp/out.wav" {
		t.Errorf("output path overwritten: %q", got.OutputFilePath)
	}
	if got.Progress != 100 {
		t.Errorf("expected progress 100, got %v", got.Progress)
	}
	if got.ErrorMessage != "" {
		t.Errorf("unexpected error message %q", got.ErrorMessage)
	}
}

func TestJobStore_FailFromPending(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Enqueue failures fail the job without it ever being claimed.
	applied, err := jobs.Fail(ctx, job.JobID, "Failed to queue processing task: queue down", time.Now())
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if !applied {
		t.Error("failure from pending should apply")
	}

	got, err := jobs.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobStatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected an error message")
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestJobStore_ProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Claim(ctx, job.JobID, time.Now(), 5); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := jobs.SetProgress(ctx, job.JobID, 50); err != nil {
		t.Fatalf("set progress: %v", err)
	}
	// A stale lower checkpoint must be ignored.
	if err := jobs.SetProgress(ctx, job.JobID, 20); err != nil {
		t.Fatalf("set stale progress: %v", err)
	}

	got, err := jobs.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != 50 {
		t.Errorf("expected progress 50, got %v", got.Progress)
	}
}

func TestJobStore_ListExpired(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	expired := newTestJob("guest-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	live := newTestJob("guest-1")

	if err := jobs.Create(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := jobs.Create(ctx, live); err != nil {
		t.Fatalf("create live: %v", err)
	}

	ids, err := jobs.ListExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.JobID {
		t.Errorf("expected only the expired job, got %v", ids)
	}
}

func TestJobStore_DeleteRemovesIndexes(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	job := newTestJob("guest-1")
	job.ExpiresAt = time.Now().Add(-time.Hour)
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.Delete(ctx, job); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := jobs.Get(ctx, job.JobID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	ids, err := jobs.ListExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expiry index not cleaned: %v", ids)
	}
	owned, err := jobs.ListByOwner(ctx, model.OwnerKey(0, "guest-1"))
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("owner index not cleaned: %v", owned)
	}
}

func TestJobStore_ListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobStore(newTestRedis(t))

	first := newTestJob("guest-1")
	second := newTestJob("guest-1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	if err := jobs.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.Create(ctx, second); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := jobs.Fail(ctx, first.JobID, "boom", time.Now()); err != nil {
		t.Fatalf("fail: %v", err)
	}

	failed, err := jobs.List(ctx, 0, 10, model.JobStatusFailed)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 1 || failed[0].JobID != first.JobID {
		t.Errorf("expected only the failed job, got %d jobs", len(failed))
	}

	all, err := jobs.List(ctx, 0, 10, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
	if all[0].JobID != second.JobID {
		t.Error("expected newest-first ordering")
	}

	count, err := jobs.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}
