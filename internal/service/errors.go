package service

import "errors"

var (
	// ErrUnsupportedFormat rejects uploads whose extension is not on the
	// allow list.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge rejects uploads over the configured ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrJobNotFound means no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotAuthorized means the principal does not own the job.
	ErrNotAuthorized = errors.New("not authorized to access this job")

	// ErrJobNotReady means the job has not completed yet.
	ErrJobNotReady = errors.New("job is not completed yet")

	// ErrOutputMissing means the record claims completion but the file
	// is absent on disk. This is a data-integrity error, not a 404.
	ErrOutputMissing = errors.New("processed file not found on server")

	// ErrInvalidCredentials covers failed logins without leaking which
	// part was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInactiveUser rejects logins for deactivated accounts.
	ErrInactiveUser = errors.New("user account is inactive")
)
