// Package store persists jobs, guest sessions, users and usage ledgers
// in Redis. Hashes hold the entities; sorted-set indexes order them by
// creation and expiry time. State transitions that must happen at most
// once are guarded by Lua scripts so they stay safe under task
// redelivery and concurrent workers.
package store

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyClaimed is returned when claiming a job that is already
	// processing. This signals a redelivered task and must be surfaced,
	// not silently re-run.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrAlreadyFinished is returned when transitioning a job that has
	// already reached a terminal state.
	ErrAlreadyFinished = errors.New("job already finished")

	// ErrConflict is returned when a uniqueness constraint would be
	// violated (duplicate email or username).
	ErrConflict = errors.New("record already exists")
)

const (
	keyJobSeq   = "seq:jobs"
	keyUserSeq  = "seq:users"
	keyGuestSeq = "seq:guests"

	keyJobsByCreated = "jobs:by_created"
	keyJobsByExpiry  = "jobs:by_expiry"

	keyGuestsByCreated = "guests:by_created"
	keyGuestsByExpiry  = "guests:by_expiry"

	keyUsersByCreated = "users:by_created"
	keyUsersByEmail   = "users:by_email"
	keyUsersByName    = "users:by_username"
)

func jobKey(jobID string) string        { return "job:" + jobID }
func jobsOwnerKey(owner string) string  { return "jobs:owner:" + owner }
func guestKey(guestID string) string    { return "guest:" + guestID }
func userKey(id int64) string           { return "user:" + strconv.FormatInt(id, 10) }
func usageKey(principal string) string  { return "usage:" + principal }

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseTimePtr(s string) *time.Time {
	if t, ok := parseTime(s); ok {
		return &t
	}
	return nil
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
