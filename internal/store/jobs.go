package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/model"
)

// JobStore is the source of truth for job status and progress.
type JobStore struct {
	rdb *redis.Client
}

func NewJobStore(rdb *redis.Client) *JobStore {
	return &JobStore{rdb: rdb}
}

// claimScript transitions pending -> processing exactly once. Any other
// current status is reported back so the caller can surface the anomaly.
var claimScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if not status then
  return "missing"
end
if status == "pending" then
  redis.call("HSET", KEYS[1], "status", "processing", "started_at", ARGV[1], "progress", ARGV[2])
  return "claimed"
end
return status
`)

// progressScript raises progress, never lowers it.
var progressScript = redis.NewScript(`
local cur = tonumber(redis.call("HGET", KEYS[1], "progress") or "0")
local new = tonumber(ARGV[1])
if new > cur then
  redis.call("HSET", KEYS[1], "progress", ARGV[1])
end
return redis.status_reply("OK")
`)

// completeScript applies the terminal success transition unless the job
// already finished.
var completeScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if not status then
  return "missing"
end
if status == "completed" or status == "failed" then
  return "finished"
end
redis.call("HSET", KEYS[1], "status", "completed", "progress", "100", "output_file_path", ARGV[1], "completed_at", ARGV[2])
return "applied"
`)

// failScript applies the terminal failure transition unless the job
// already finished. Jobs can fail from pending (enqueue failure) as
// well as from processing.
var failScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if not status then
  return "missing"
end
if status == "completed" or status == "failed" then
  return "finished"
end
redis.call("HSET", KEYS[1], "status", "failed", "error_message", ARGV[1], "completed_at", ARGV[2])
return "applied"
`)

// Create persists a new pending job and its index entries.
func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	id, err := s.rdb.Incr(ctx, keyJobSeq).Result()
	if err != nil {
		return fmt.Errorf("allocate job id: %w", err)
	}
	job.ID = id

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.JobID), jobToMap(job))
	pipe.ZAdd(ctx, keyJobsByCreated, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.JobID})
	pipe.ZAdd(ctx, keyJobsByExpiry, redis.Z{Score: float64(job.ExpiresAt.Unix()), Member: job.JobID})
	if owner := model.OwnerKey(job.UserID, job.GuestID); owner != "" {
		pipe.SAdd(ctx, jobsOwnerKey(owner), job.JobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// Get fetches a job by its external id.
func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return jobFromMap(jobID, fields), nil
}

// Claim moves a pending job to processing, recording the started
// timestamp and the initial progress checkpoint. It returns
// ErrNotFound for unknown jobs, ErrAlreadyClaimed when the job is
// already processing (redelivery), and ErrAlreadyFinished for
// terminal jobs.
func (s *JobStore) Claim(ctx context.Context, jobID string, startedAt time.Time, initialProgress float64) (*model.Job, error) {
	res, err := claimScript.Run(ctx, s.rdb, []string{jobKey(jobID)},
		encodeTime(startedAt), formatFloat(initialProgress)).Text()
	if err != nil {
		return nil, err
	}
	switch res {
	case "claimed":
		return s.Get(ctx, jobID)
	case "missing":
		return nil, ErrNotFound
	case string(model.JobStatusProcessing):
		return nil, ErrAlreadyClaimed
	default:
		return nil, ErrAlreadyFinished
	}
}

// SetProgress checkpoints progress. Progress is monotonically
// non-decreasing; stale lower values are ignored.
func (s *JobStore) SetProgress(ctx context.Context, jobID string, progress float64) error {
	return progressScript.Run(ctx, s.rdb, []string{jobKey(jobID)}, formatFloat(progress)).Err()
}

// SetTaskID records the queue's task identifier in the job metadata.
func (s *JobStore) SetTaskID(ctx context.Context, jobID, taskID string) error {
	return s.rdb.HSet(ctx, jobKey(jobID), "task_id", taskID).Err()
}

// Complete applies the terminal success transition. The returned bool
// reports whether this call performed the transition; callers must only
// record usage when it did, so redelivered tasks cannot double-count.
func (s *JobStore) Complete(ctx context.Context, jobID, outputPath string, completedAt time.Time) (bool, error) {
	res, err := completeScript.Run(ctx, s.rdb, []string{jobKey(jobID)},
		outputPath, encodeTime(completedAt)).Text()
	if err != nil {
		return false, err
	}
	switch res {
	case "applied":
		return true, nil
	case "missing":
		return false, ErrNotFound
	default:
		return false, nil
	}
}

// Fail applies the terminal failure transition, storing the diagnostic
// message. Same idempotence contract as Complete.
func (s *JobStore) Fail(ctx context.Context, jobID, errMsg string, completedAt time.Time) (bool, error) {
	res, err := failScript.Run(ctx, s.rdb, []string{jobKey(jobID)},
		errMsg, encodeTime(completedAt)).Text()
	if err != nil {
		return false, err
	}
	switch res {
	case "applied":
		return true, nil
	case "missing":
		return false, ErrNotFound
	default:
		return false, nil
	}
}

// Delete removes the record and all its index entries.
func (s *JobStore) Delete(ctx context.Context, job *model.Job) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, jobKey(job.JobID))
	pipe.ZRem(ctx, keyJobsByCreated, job.JobID)
	pipe.ZRem(ctx, keyJobsByExpiry, job.JobID)
	if owner := model.OwnerKey(job.UserID, job.GuestID); owner != "" {
		pipe.SRem(ctx, jobsOwnerKey(owner), job.JobID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ListExpired returns ids of jobs whose expiry timestamp has passed.
func (s *JobStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, keyJobsByExpiry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
}

// ListByOwner returns the ids of all jobs owned by the given principal key.
func (s *JobStore) ListByOwner(ctx context.Context, ownerKey string) ([]string, error) {
	return s.rdb.SMembers(ctx, jobsOwnerKey(ownerKey)).Result()
}

// List returns jobs ordered newest first, optionally filtered by status.
func (s *JobStore) List(ctx context.Context, offset, limit int64, status model.JobStatus) ([]*model.Job, error) {
	ids, err := s.rdb.ZRevRange(ctx, keyJobsByCreated, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*model.Job, 0, limit)
	var skipped int64
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue // reaped between index read and fetch
		}
		if err != nil {
			return nil, err
		}
		if status != "" && job.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		jobs = append(jobs, job)
		if int64(len(jobs)) >= limit {
			break
		}
	}
	return jobs, nil
}

// Count returns the number of live job records.
func (s *JobStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, keyJobsByCreated).Result()
}

func jobToMap(j *model.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":                strconv.FormatInt(j.ID, 10),
		"filename":          j.Filename,
		"original_filename": j.OriginalFilename,
		"file_size":         strconv.FormatInt(j.FileSize, 10),
		"file_format":       j.FileFormat,
		"input_file_path":   j.InputFilePath,
		"status":            string(j.Status),
		"progress":          formatFloat(j.Progress),
		"created_at":        encodeTime(j.CreatedAt),
		"expires_at":        encodeTime(j.ExpiresAt),
	}
	if j.Duration > 0 {
		m["duration"] = formatFloat(j.Duration)
	}
	if j.SampleRate > 0 {
		m["sample_rate"] = strconv.Itoa(j.SampleRate)
	}
	if j.Channels > 0 {
		m["channels"] = strconv.Itoa(j.Channels)
	}
	if j.UserID != 0 {
		m["user_id"] = strconv.FormatInt(j.UserID, 10)
	}
	if j.GuestID != "" {
		m["guest_id"] = j.GuestID
	}
	if j.ProcessingType != "" {
		m["processing_type"] = j.ProcessingType
	}
	if j.TaskID != "" {
		m["task_id"] = j.TaskID
	}
	return m
}

func jobFromMap(jobID string, f map[string]string) *model.Job {
	j := &model.Job{
		ID:               parseInt(f["id"]),
		JobID:            jobID,
		Filename:         f["filename"],
		OriginalFilename: f["original_filename"],
		FileSize:         parseInt(f["file_size"]),
		FileFormat:       f["file_format"],
		Duration:         parseFloat(f["duration"]),
		SampleRate:       int(parseInt(f["sample_rate"])),
		Channels:         int(parseInt(f["channels"])),
		InputFilePath:    f["input_file_path"],
		OutputFilePath:   f["output_file_path"],
		UserID:           parseInt(f["user_id"]),
		GuestID:          f["guest_id"],
		Status:           model.JobStatus(f["status"]),
		Progress:         parseFloat(f["progress"]),
		ProcessingType:   f["processing_type"],
		ErrorMessage:     f["error_message"],
		TaskID:           f["task_id"],
		StartedAt:        parseTimePtr(f["started_at"]),
		CompletedAt:      parseTimePtr(f["completed_at"]),
	}
	if t, ok := parseTime(f["created_at"]); ok {
		j.CreatedAt = t
	}
	if t, ok := parseTime(f["expires_at"]); ok {
		j.ExpiresAt = t
	}
	return j
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
