package service

import (
	"context"
	"log"

	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
	"github.com/whazzaudio/api/internal/worker"
)

// AdminService backs the admin surface: listings, platform stats and
// the on-demand cleanup trigger.
type AdminService struct {
	users   *store.UserStore
	guests  *store.GuestStore
	jobs    *store.JobStore
	usage   *store.UsageStore
	summary *UsageService
	cleanup *worker.CleanupWorker
}

func NewAdminService(users *store.UserStore, guests *store.GuestStore, jobs *store.JobStore, usage *store.UsageStore, summary *UsageService, cleanup *worker.CleanupWorker) *AdminService {
	return &AdminService{
		users:   users,
		guests:  guests,
		jobs:    jobs,
		usage:   usage,
		summary: summary,
		cleanup: cleanup,
	}
}

// UserList is one page of registered accounts.
type UserList struct {
	Users  []*model.User `json:"users"`
	Total  int64         `json:"total"`
	Offset int64         `json:"offset"`
	Limit  int64         `json:"limit"`
}

// GuestList is one page of guest sessions.
type GuestList struct {
	Guests []*model.GuestSession `json:"guests"`
	Total  int64                 `json:"total"`
	Offset int64                 `json:"offset"`
	Limit  int64                 `json:"limit"`
}

// JobList is one page of processing jobs.
type JobList struct {
	Jobs   []*model.Job `json:"jobs"`
	Total  int64        `json:"total"`
	Offset int64        `json:"offset"`
	Limit  int64        `json:"limit"`
}

// PlatformStats aggregates entity counts with the global usage ledger.
type PlatformStats struct {
	TotalUsers  int64               `json:"totalUsers"`
	TotalGuests int64               `json:"totalGuests"`
	TotalJobs   int64               `json:"totalJobs"`
	Usage       *model.UsageSummary `json:"usage"`
}

func (s *AdminService) ListUsers(ctx context.Context, offset, limit int64, search string) (*UserList, error) {
	users, err := s.users.List(ctx, offset, limit, search)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &UserList{Users: users, Total: total, Offset: offset, Limit: limit}, nil
}

func (s *AdminService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.Get(ctx, id)
}

// SetUserActive enables or disables an account. Inactive accounts
// cannot log in or use their existing access tokens.
func (s *AdminService) SetUserActive(ctx context.Context, id int64, active bool) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

// DeleteUser removes an account and cascades to its jobs (records and
// files) and its usage ledger.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return err
	}

	owner := model.OwnerKey(id, "")
	jobIDs, err := s.jobs.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}
	for _, jobID := range jobIDs {
		job, err := s.jobs.Get(ctx, jobID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			log.Printf("Error loading job %s during user cascade: %v", jobID, err)
			continue
		}
		removeQuiet(job.InputFilePath)
		removeQuiet(job.OutputFilePath)
		if err := s.jobs.Delete(ctx, job); err != nil {
			log.Printf("Error deleting job %s during user cascade: %v", jobID, err)
		}
	}

	if err := s.usage.Delete(ctx, owner); err != nil {
		log.Printf("Error deleting usage ledger for user %d: %v", id, err)
	}

	return s.users.Delete(ctx, user)
}

func (s *AdminService) ListGuests(ctx context.Context, offset, limit int64) (*GuestList, error) {
	guests, err := s.guests.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.guests.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &GuestList{Guests: guests, Total: total, Offset: offset, Limit: limit}, nil
}

func (s *AdminService) ListJobs(ctx context.Context, offset, limit int64, status model.JobStatus) (*JobList, error) {
	jobs, err := s.jobs.List(ctx, offset, limit, status)
	if err != nil {
		return nil, err
	}
	total, err := s.jobs.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &JobList{Jobs: jobs, Total: total, Offset: offset, Limit: limit}, nil
}

// Stats returns counts plus the platform-wide usage summary.
func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	guestCount, err := s.guests.Count(ctx)
	if err != nil {
		return nil, err
	}
	jobCount, err := s.jobs.Count(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := s.summary.PlatformSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		TotalUsers:  userCount,
		TotalGuests: guestCount,
		TotalJobs:   jobCount,
		Usage:       usage,
	}, nil
}

// RunCleanup performs one reaper pass synchronously instead of waiting
// for the scheduled run.
func (s *AdminService) RunCleanup(ctx context.Context) (worker.SweepResult, error) {
	return s.cleanup.Sweep(ctx)
}
