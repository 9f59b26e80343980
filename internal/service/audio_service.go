package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/whazzaudio/api/internal/audio"
	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
	"github.com/whazzaudio/api/internal/worker"
)

// TaskEnqueuer queues background tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AudioService owns the upload/status/download lifecycle.
type AudioService struct {
	cfg      *config.Config
	jobs     *store.JobStore
	guests   *store.GuestStore
	usage    *store.UsageStore
	enqueuer TaskEnqueuer
}

func NewAudioService(cfg *config.Config, jobs *store.JobStore, guests *store.GuestStore, usage *store.UsageStore, enqueuer TaskEnqueuer) *AudioService {
	return &AudioService{
		cfg:      cfg,
		jobs:     jobs,
		guests:   guests,
		usage:    usage,
		enqueuer: enqueuer,
	}
}

// Upload validates and persists an uploaded file, creates the pending
// job, queues the processing task and records the upload usage event.
func (s *AudioService) Upload(ctx context.Context, p model.Principal, originalFilename string, src io.Reader) (*model.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !s.formatAllowed(ext) {
		return nil, fmt.Errorf("%w: allowed formats: %s",
			ErrUnsupportedFormat, strings.Join(s.cfg.Upload.AllowedFormats, ", "))
	}

	if err := os.MkdirAll(s.cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	storedName := uuid.New().String() + ext
	inputPath := filepath.Join(s.cfg.Upload.Dir, storedName)

	size, err := writeFile(inputPath, src)
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}

	// Size is checked post-write, in bytes, against the configured MB
	// ceiling.
	maxBytes := s.cfg.Upload.MaxFileSizeMB * 1024 * 1024
	if size > maxBytes {
		os.Remove(inputPath)
		return nil, fmt.Errorf("%w: maximum size: %dMB", ErrFileTooLarge, s.cfg.Upload.MaxFileSizeMB)
	}

	info := audio.Probe(inputPath)
	now := time.Now()

	job := &model.Job{
		JobID:            uuid.New().String(),
		Filename:         storedName,
		OriginalFilename: originalFilename,
		FileSize:         size,
		FileFormat:       strings.TrimPrefix(ext, "."),
		Duration:         info.Duration,
		SampleRate:       info.SampleRate,
		Channels:         info.Channels,
		InputFilePath:    inputPath,
		Status:           model.JobStatusPending,
		Progress:         0,
		ProcessingType:   model.ProcessingSpeechEnhancement,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(s.cfg.Upload.ExpiryHours) * time.Hour),
	}
	var mintedGuestID string
	switch p.Type {
	case model.PrincipalUser:
		job.UserID = p.User.ID
	case model.PrincipalGuest:
		job.GuestID = p.GuestID
	default:
		// Anonymous uploads adopt a fresh guest session so the caller
		// can poll status and download the result with the echoed id.
		guestID, err := s.mintGuest(ctx, now)
		if err != nil {
			os.Remove(inputPath)
			return nil, err
		}
		job.GuestID = guestID
		mintedGuestID = guestID
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		os.Remove(inputPath)
		return nil, err
	}

	// The upload happened regardless of what the queue does next.
	if err := s.usage.RecordUpload(ctx, model.OwnerKey(job.UserID, job.GuestID), size, job.ProcessingType); err != nil {
		log.Printf("Failed to record upload usage: %v", err)
	}

	if err := s.enqueue(ctx, job); err != nil {
		// Queueing failed; the job is dead on arrival.
		msg := fmt.Sprintf("Failed to queue processing task: %v", err)
		if _, ferr := s.jobs.Fail(ctx, job.JobID, msg, time.Now()); ferr != nil {
			log.Printf("Failed to mark job %s as failed: %v", job.JobID, ferr)
		}
		job.Status = model.JobStatusFailed
	}

	return &model.UploadResponse{
		JobID:            job.JobID,
		GuestID:          mintedGuestID,
		Status:           job.Status,
		Filename:         job.Filename,
		OriginalFilename: job.OriginalFilename,
		FileSize:         job.FileSize,
		FileFormat:       job.FileFormat,
		Duration:         job.Duration,
		SampleRate:       job.SampleRate,
		Channels:         job.Channels,
		CreatedAt:        job.CreatedAt,
		ExpiresAt:        job.ExpiresAt,
		Message:          "File uploaded successfully. Processing will begin shortly.",
	}, nil
}

// mintGuest creates a guest session for a credential-less uploader.
func (s *AudioService) mintGuest(ctx context.Context, now time.Time) (string, error) {
	session := &model.GuestSession{
		GuestID:      uuid.New().String(),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.cfg.JWT.GuestExpiration),
	}
	if err := s.guests.Create(ctx, session); err != nil {
		return "", fmt.Errorf("create guest session: %w", err)
	}
	return session.GuestID, nil
}

func (s *AudioService) enqueue(ctx context.Context, job *model.Job) error {
	task, err := worker.NewProcessTask(job.JobID)
	if err != nil {
		return err
	}
	info, err := s.enqueuer.Enqueue(task,
		asynq.Queue(worker.QueueAudio),
		asynq.MaxRetry(0), // failed jobs are terminal, resubmit as a new job
		asynq.Timeout(s.cfg.Processing.HardTimeout+5*time.Minute),
	)
	if err != nil {
		return err
	}
	if err := s.jobs.SetTaskID(ctx, job.JobID, info.ID); err != nil {
		log.Printf("Failed to record task id for job %s: %v", job.JobID, err)
	}
	job.TaskID = info.ID
	return nil
}

// Status returns the owner's view of a job.
func (s *AudioService) Status(ctx context.Context, p model.Principal, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.authorizedJob(ctx, p, jobID)
	if err != nil {
		return nil, err
	}
	return job.StatusResponse(), nil
}

// DownloadInfo describes the file to stream back.
type DownloadInfo struct {
	Path        string
	Filename    string
	ContentType string
}

// Download authorizes and resolves the processed file for streaming.
func (s *AudioService) Download(ctx context.Context, p model.Principal, jobID string) (*DownloadInfo, error) {
	job, err := s.authorizedJob(ctx, p, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusCompleted {
		return nil, fmt.Errorf("%w: current status: %s", ErrJobNotReady, job.Status)
	}
	if job.OutputFilePath == "" {
		return nil, ErrOutputMissing
	}
	if _, err := os.Stat(job.OutputFilePath); err != nil {
		// The record claims completion; a missing file is an integrity
		// error, not a not-found.
		return nil, ErrOutputMissing
	}

	if err := s.usage.RecordDownload(ctx, p.Key()); err != nil {
		log.Printf("Failed to record download usage: %v", err)
	}

	return &DownloadInfo{
		Path:        job.OutputFilePath,
		Filename:    "processed_" + job.OriginalFilename,
		ContentType: detectContentType(job.OutputFilePath),
	}, nil
}

func (s *AudioService) authorizedJob(ctx context.Context, p model.Principal, jobID string) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err == store.ErrNotFound {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(p) {
		return nil, ErrNotAuthorized
	}
	return job, nil
}

func (s *AudioService) formatAllowed(ext string) bool {
	for _, allowed := range s.cfg.Upload.AllowedFormats {
		if ext == allowed {
			return true
		}
	}
	return false
}

func writeFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return size, nil
}

func detectContentType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil || mtype.Is("application/octet-stream") {
		return "audio/wav" // generic audio default
	}
	return mtype.String()
}
