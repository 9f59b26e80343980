package worker

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/whazzaudio/api/internal/store"
)

// SweepResult reports what one reaper pass removed.
type SweepResult struct {
	JobsDeleted   int `json:"jobsDeleted"`
	GuestsDeleted int `json:"guestsDeleted"`
}

// CleanupWorker deletes expired job records with their backing files,
// and expired guest sessions. It runs daily from the scheduler and on
// demand from the admin surface.
type CleanupWorker struct {
	jobs   *store.JobStore
	guests *store.GuestStore
}

func NewCleanupWorker(jobs *store.JobStore, guests *store.GuestStore) *CleanupWorker {
	return &CleanupWorker{jobs: jobs, guests: guests}
}

// ProcessTask handles the scheduled maintenance:cleanup task.
func (w *CleanupWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	result, err := w.Sweep(ctx)
	if err != nil {
		return err
	}
	log.Printf("Cleanup removed %d expired jobs, %d expired guest sessions",
		result.JobsDeleted, result.GuestsDeleted)
	return nil
}

// Sweep performs one synchronous reaper pass. A failure on one record
// never aborts the sweep for the others.
func (w *CleanupWorker) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := time.Now()

	jobIDs, err := w.jobs.ListExpired(ctx, now)
	if err != nil {
		return result, err
	}
	for _, jobID := range jobIDs {
		job, err := w.jobs.Get(ctx, jobID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			log.Printf("Error loading expired job %s: %v", jobID, err)
			continue
		}

		removeFile(job.InputFilePath)
		removeFile(job.OutputFilePath)

		if err := w.jobs.Delete(ctx, job); err != nil {
			log.Printf("Error deleting expired job %s: %v", jobID, err)
			continue
		}
		result.JobsDeleted++
	}

	guestIDs, err := w.guests.ListExpired(ctx, now)
	if err != nil {
		return result, err
	}
	for _, guestID := range guestIDs {
		if err := w.guests.Delete(ctx, guestID); err != nil {
			log.Printf("Error deleting expired guest session %s: %v", guestID, err)
			continue
		}
		result.GuestsDeleted++
	}

	return result, nil
}

// removeFile deletes best-effort: a file already gone is fine here.
func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Error removing file %s: %v", path, err)
	}
}
