package service

import (
	"context"
	"fmt"
	"math"

	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
)

const bytesPerMB = 1024 * 1024

// UsageService derives display metrics and limit checks from the raw
// ledgers. Derived values are computed on read, never stored.
type UsageService struct {
	cfg   *config.Config
	usage *store.UsageStore
}

func NewUsageService(cfg *config.Config, usage *store.UsageStore) *UsageService {
	return &UsageService{cfg: cfg, usage: usage}
}

// Summary returns the ledger with derived metrics for one principal.
func (s *UsageService) Summary(ctx context.Context, p model.Principal) (*model.UsageSummary, error) {
	stats, err := s.usage.Get(ctx, p.Key())
	if err != nil {
		return nil, err
	}
	summary := Summarize(stats)
	summary.UserType = string(p.Type)
	return summary, nil
}

// PlatformSummary returns the aggregate ledger across all principals.
func (s *UsageService) PlatformSummary(ctx context.Context) (*model.UsageSummary, error) {
	stats, err := s.usage.Get(ctx, store.GlobalLedger)
	if err != nil {
		return nil, err
	}
	summary := Summarize(stats)
	summary.UserType = "platform"
	return summary, nil
}

// Summarize computes the derived view of a raw ledger.
func Summarize(stats *model.UsageStats) *model.UsageSummary {
	var avgProcessing float64
	if stats.TotalFilesProcessed > 0 {
		avgProcessing = stats.TotalProcessingTime / float64(stats.TotalFilesProcessed)
	}

	var successRate float64
	if finished := stats.TotalFilesProcessed + stats.TotalFilesFailed; finished > 0 {
		successRate = float64(stats.TotalFilesProcessed) / float64(finished) * 100
	}

	var avgFileSize float64
	if stats.TotalFilesUploaded > 0 {
		avgFileSize = stats.TotalInputSize / float64(stats.TotalFilesUploaded)
	}

	return &model.UsageSummary{
		TotalFilesUploaded:   stats.TotalFilesUploaded,
		TotalFilesProcessed:  stats.TotalFilesProcessed,
		TotalFilesFailed:     stats.TotalFilesFailed,
		TotalFilesDownloaded: stats.TotalFilesDownloaded,

		TotalInputSizeMB:  round2(stats.TotalInputSize / bytesPerMB),
		TotalOutputSizeMB: round2(stats.TotalOutputSize / bytesPerMB),
		AverageFileSizeMB: round2(avgFileSize / bytesPerMB),

		TotalProcessingMinutes:       round2(stats.TotalProcessingTime / 60),
		AverageProcessingTimeSeconds: round2(avgProcessing),

		ProcessingTypesBreakdown: stats.ProcessingTypes,

		SuccessRatePercent: round2(successRate),

		FirstUploadAt:  stats.FirstUploadAt,
		LastUploadAt:   stats.LastUploadAt,
		LastDownloadAt: stats.LastDownloadAt,

		APICallsCount: stats.APICallsCount,
		LastAPICallAt: stats.LastAPICallAt,
	}
}

// CheckLimits evaluates all limit types for the principal with the
// thresholds configured for its variant.
func (s *UsageService) CheckLimits(ctx context.Context, p model.Principal) (map[model.LimitType]model.LimitCheck, error) {
	stats, err := s.usage.Get(ctx, p.Key())
	if err != nil {
		return nil, err
	}

	var files, storage, minutes int64
	if p.Type == model.PrincipalUser {
		files = s.cfg.Limits.UserFiles
		storage = s.cfg.Limits.UserStorageMB
		minutes = s.cfg.Limits.UserProcessingMinutes
	} else {
		files = s.cfg.Limits.GuestFiles
		storage = s.cfg.Limits.GuestStorageMB
		minutes = s.cfg.Limits.GuestProcessingMinutes
	}

	return map[model.LimitType]model.LimitCheck{
		model.LimitFilesTotal:        CheckLimit(stats, model.LimitFilesTotal, files),
		model.LimitStorageMB:         CheckLimit(stats, model.LimitStorageMB, storage),
		model.LimitProcessingMinutes: CheckLimit(stats, model.LimitProcessingMinutes, minutes),
	}, nil
}

// CheckLimit reports whether the relevant lifetime accumulator is still
// below the threshold. These are lifetime totals, not rolling windows.
func CheckLimit(stats *model.UsageStats, limitType model.LimitType, threshold int64) model.LimitCheck {
	check := model.LimitCheck{WithinLimit: true, Limit: threshold, Message: "Within limits"}

	switch limitType {
	case model.LimitFilesTotal:
		if stats.TotalFilesUploaded >= threshold {
			check.WithinLimit = false
			check.Message = fmt.Sprintf("Upload limit of %d files reached", threshold)
		}
	case model.LimitStorageMB:
		if stats.TotalInputSize/bytesPerMB >= float64(threshold) {
			check.WithinLimit = false
			check.Message = fmt.Sprintf("Storage limit of %dMB reached", threshold)
		}
	case model.LimitProcessingMinutes:
		if stats.TotalProcessingTime/60 >= float64(threshold) {
			check.WithinLimit = false
			check.Message = fmt.Sprintf("Processing time limit of %d minutes reached", threshold)
		}
	}
	return check
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
