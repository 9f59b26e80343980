package model

import "time"

// UsageStats is the raw per-principal ledger: monotonically increasing
// counters and accumulators, plus activity timestamps.
type UsageStats struct {
	PrincipalKey string `json:"-"`

	TotalFilesUploaded   int64 `json:"totalFilesUploaded"`
	TotalFilesProcessed  int64 `json:"totalFilesProcessed"`
	TotalFilesFailed     int64 `json:"totalFilesFailed"`
	TotalFilesDownloaded int64 `json:"totalFilesDownloaded"`

	TotalInputSize  float64 `json:"totalInputSize"`  // bytes
	TotalOutputSize float64 `json:"totalOutputSize"` // bytes

	TotalProcessingTime float64 `json:"totalProcessingTime"` // seconds

	ProcessingTypes map[string]int64 `json:"processingTypes"`

	APICallsCount int64 `json:"apiCallsCount"`

	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	FirstUploadAt *time.Time `json:"firstUploadAt,omitempty"`
	LastUploadAt  *time.Time `json:"lastUploadAt,omitempty"`
	LastDownloadAt *time.Time `json:"lastDownloadAt,omitempty"`
	LastAPICallAt  *time.Time `json:"lastApiCallAt,omitempty"`
}

// UsageSummary is the display view of a ledger. Derived values are
// computed on read, never stored.
type UsageSummary struct {
	TotalFilesUploaded   int64 `json:"totalFilesUploaded"`
	TotalFilesProcessed  int64 `json:"totalFilesProcessed"`
	TotalFilesFailed     int64 `json:"totalFilesFailed"`
	TotalFilesDownloaded int64 `json:"totalFilesDownloaded"`

	TotalInputSizeMB  float64 `json:"totalInputSizeMb"`
	TotalOutputSizeMB float64 `json:"totalOutputSizeMb"`
	AverageFileSizeMB float64 `json:"averageFileSizeMb"`

	TotalProcessingMinutes       float64 `json:"totalProcessingTimeMinutes"`
	AverageProcessingTimeSeconds float64 `json:"averageProcessingTimeSeconds"`

	ProcessingTypesBreakdown map[string]int64 `json:"processingTypesBreakdown"`

	SuccessRatePercent float64 `json:"successRatePercent"`

	FirstUploadAt  *time.Time `json:"firstUploadAt,omitempty"`
	LastUploadAt   *time.Time `json:"lastUploadAt,omitempty"`
	LastDownloadAt *time.Time `json:"lastDownloadAt,omitempty"`

	APICallsCount int64      `json:"apiCallsCount"`
	LastAPICallAt *time.Time `json:"lastApiCallAt,omitempty"`

	UserType string `json:"userType"`
}

// Limit types understood by the usage service. Limits apply to lifetime
// accumulators, not rolling windows.
type LimitType string

const (
	LimitFilesTotal        LimitType = "files_total"
	LimitStorageMB         LimitType = "storage_mb"
	LimitProcessingMinutes LimitType = "processing_minutes"
)

// LimitCheck is the result of evaluating one limit.
type LimitCheck struct {
	WithinLimit bool   `json:"withinLimit"`
	Limit       int64  `json:"limit"`
	Message     string `json:"message"`
}
