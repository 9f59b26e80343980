package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types registered on the asynq mux.
const (
	TaskTypeProcessAudio = "audio:process"
	TaskTypeCleanup      = "maintenance:cleanup"
)

// Queue names.
const (
	QueueAudio       = "audio"
	QueueMaintenance = "maintenance"
)

// ProcessPayload is the payload of an audio processing task.
type ProcessPayload struct {
	JobID string `json:"jobId"`
}

// NewProcessTask builds the task that drives one job through the
// processing pipeline.
func NewProcessTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(ProcessPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcessAudio, data), nil
}

// NewCleanupTask builds the expiry sweep task.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCleanup, nil)
}
