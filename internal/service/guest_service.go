package service

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
)

// GuestService manages anonymous guest sessions.
type GuestService struct {
	cfg    *config.Config
	guests *store.GuestStore
	jobs   *store.JobStore
	usage  *store.UsageStore
	issuer *auth.TokenIssuer
}

func NewGuestService(cfg *config.Config, guests *store.GuestStore, jobs *store.JobStore, usage *store.UsageStore, issuer *auth.TokenIssuer) *GuestService {
	return &GuestService{
		cfg:    cfg,
		guests: guests,
		jobs:   jobs,
		usage:  usage,
		issuer: issuer,
	}
}

// CreateSession mints a new guest id, persists the session and returns
// its long-lived token.
func (s *GuestService) CreateSession(ctx context.Context, ip, userAgent string) (*model.GuestTokenResponse, error) {
	guestID := uuid.New().String()

	token, expiresAt, err := s.issuer.IssueGuest(guestID, s.cfg.JWT.GuestExpiration)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &model.GuestSession{
		GuestID:      guestID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
	}
	if err := s.guests.Create(ctx, session); err != nil {
		return nil, err
	}

	return &model.GuestTokenResponse{
		GuestToken: token,
		GuestID:    guestID,
		TokenType:  "bearer",
		ExpiresIn:  int(time.Until(expiresAt).Seconds()),
	}, nil
}

// GetSession fetches one session.
func (s *GuestService) GetSession(ctx context.Context, guestID string) (*model.GuestSession, error) {
	return s.guests.Get(ctx, guestID)
}

// DeleteSession removes a session and cascades to its jobs (records and
// files) and its usage ledger.
func (s *GuestService) DeleteSession(ctx context.Context, guestID string) error {
	if _, err := s.guests.Get(ctx, guestID); err != nil {
		return err
	}

	owner := model.OwnerKey(0, guestID)
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
			log.Printf("Error loading job %s during guest cascade: %v", jobID, err)
			continue
		}
		removeQuiet(job.InputFilePath)
		removeQuiet(job.OutputFilePath)
		if err := s.jobs.Delete(ctx, job); err != nil {
			log.Printf("Error deleting job %s during guest cascade: %v", jobID, err)
		}
	}

	if err := s.usage.Delete(ctx, owner); err != nil {
		log.Printf("Error deleting usage ledger for guest %s: %v", guestID, err)
	}

	return s.guests.Delete(ctx, guestID)
}

func removeQuiet(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Error removing file %s: %v", path, err)
	}
}
