package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Processing types
const (
	ProcessingSpeechEnhancement = "speech_enhancement"
)

// Job represents one upload-through-result processing lifecycle.
type Job struct {
	ID     int64  `json:"id"`
	JobID  string `json:"jobId"`

	Filename         string `json:"filename"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	FileFormat       string `json:"fileFormat"`

	// Best-effort audio metadata, zero when unextractable.
	Duration   float64 `json:"duration,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`

	InputFilePath  string `json:"inputFilePath"`
	OutputFilePath string `json:"outputFilePath,omitempty"`

	// Exactly one of UserID/GuestID is set. Anonymous uploads are
	// adopted into a minted guest session at creation time.
	UserID  int64  `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`

	Status         JobStatus `json:"status"`
	Progress       float64   `json:"progress"`
	ProcessingType string    `json:"processingType,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	TaskID         string    `json:"taskId,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

// OwnedBy reports whether the given principal owns this job.
// Anonymous principals own nothing, and unowned jobs belong to no one.
func (j *Job) OwnedBy(p Principal) bool {
	switch p.Type {
	case PrincipalUser:
		return j.UserID != 0 && j.UserID == p.User.ID
	case PrincipalGuest:
		return j.GuestID != "" && j.GuestID == p.GuestID
	default:
		return false
	}
}

// OutputAvailable reports whether the processed file can be downloaded.
func (j *Job) OutputAvailable() bool {
	return j.Status == JobStatusCompleted && j.OutputFilePath != ""
}

// UploadResponse echoes file metadata after a successful upload.
// GuestID is set only when an anonymous upload was adopted into a new
// guest session; the caller uses it to poll status and download.
type UploadResponse struct {
	JobID            string    `json:"jobId"`
	GuestID          string    `json:"guestId,omitempty"`
	Status           JobStatus `json:"status"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	FileSize         int64     `json:"fileSize"`
	FileFormat       string    `json:"fileFormat"`
	Duration         float64   `json:"duration,omitempty"`
	SampleRate       int       `json:"sampleRate,omitempty"`
	Channels         int       `json:"channels,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	Message          string    `json:"message"`
}

// JobStatusResponse is returned by the status endpoint.
type JobStatusResponse struct {
	JobID           string     `json:"jobId"`
	Status          JobStatus  `json:"status"`
	Progress        float64    `json:"progress"`
	Filename        string     `json:"filename"`
	ProcessingType  string     `json:"processingType,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	OutputAvailable bool       `json:"outputAvailable"`
}

// StatusResponse builds the public view of a job. Raw diagnostic traces
// stay server-side; only the first line of the error is exposed.
func (j *Job) StatusResponse() *JobStatusResponse {
	return &JobStatusResponse{
		JobID:           j.JobID,
		Status:          j.Status,
		Progress:        j.Progress,
		Filename:        j.Filename,
		ProcessingType:  j.ProcessingType,
		ErrorMessage:    firstLine(j.ErrorMessage),
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		OutputAvailable: j.OutputAvailable(),
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
