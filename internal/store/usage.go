package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/model"
)

// GlobalLedger aggregates events across all principals for platform stats.
const GlobalLedger = "global"

const typeFieldPrefix = "type:"

// UsageStore keeps one ledger hash per principal. All increments go
// through Redis HINCRBY/HINCRBYFLOAT so concurrent task completions for
// the same principal can never lose updates.
type UsageStore struct {
	rdb *redis.Client
}

func NewUsageStore(rdb *redis.Client) *UsageStore {
	return &UsageStore{rdb: rdb}
}

// RecordUpload counts an upload event. The ledger row is created lazily
// by the first increment.
func (s *UsageStore) RecordUpload(ctx context.Context, principalKey string, fileSize int64, processingType string) error {
	now := encodeTime(time.Now())
	for _, key := range s.targets(principalKey) {
		pipe := s.rdb.TxPipeline()
		pipe.HIncrBy(ctx, key, "total_files_uploaded", 1)
		pipe.HIncrByFloat(ctx, key, "total_input_size", float64(fileSize))
		if processingType != "" {
			pipe.HIncrBy(ctx, key, typeFieldPrefix+processingType, 1)
		}
		pipe.HSetNX(ctx, key, "created_at", now)
		pipe.HSetNX(ctx, key, "first_upload_at", now)
		pipe.HSet(ctx, key, "last_upload_at", now)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordProcessingResult counts a terminal processing event. Output
// bytes only accumulate on success; duration always does.
func (s *UsageStore) RecordProcessingResult(ctx context.Context, principalKey string, duration float64, outputBytes int64, success bool) error {
	now := encodeTime(time.Now())
	for _, key := range s.targets(principalKey) {
		pipe := s.rdb.TxPipeline()
		if success {
			pipe.HIncrBy(ctx, key, "total_files_processed", 1)
			pipe.HIncrByFloat(ctx, key, "total_output_size", float64(outputBytes))
		} else {
			pipe.HIncrBy(ctx, key, "total_files_failed", 1)
		}
		pipe.HIncrByFloat(ctx, key, "total_processing_time", duration)
		pipe.HSetNX(ctx, key, "created_at", now)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordDownload counts a download event.
func (s *UsageStore) RecordDownload(ctx context.Context, principalKey string) error {
	now := encodeTime(time.Now())
	for _, key := range s.targets(principalKey) {
		pipe := s.rdb.TxPipeline()
		pipe.HIncrBy(ctx, key, "total_files_downloaded", 1)
		pipe.HSetNX(ctx, key, "created_at", now)
		pipe.HSet(ctx, key, "last_download_at", now)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordAPICall counts an authenticated API call.
func (s *UsageStore) RecordAPICall(ctx context.Context, principalKey string) error {
	key := usageKey(principalKey)
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "api_calls_count", 1)
	pipe.HSetNX(ctx, key, "created_at", encodeTime(time.Now()))
	pipe.HSet(ctx, key, "last_api_call_at", encodeTime(time.Now()))
	_, err := pipe.Exec(ctx)
	return err
}

// Get reads a ledger. A principal with no recorded events gets a zero
// ledger, mirroring lazy creation.
func (s *UsageStore) Get(ctx context.Context, principalKey string) (*model.UsageStats, error) {
	fields, err := s.rdb.HGetAll(ctx, usageKey(principalKey)).Result()
	if err != nil {
		return nil, err
	}

	stats := &model.UsageStats{
		PrincipalKey:    principalKey,
		ProcessingTypes: map[string]int64{},
	}
	for field, val := range fields {
		switch field {
		case "total_files_uploaded":
			stats.TotalFilesUploaded = parseInt(val)
		case "total_files_processed":
			stats.TotalFilesProcessed = parseInt(val)
		case "total_files_failed":
			stats.TotalFilesFailed = parseInt(val)
		case "total_files_downloaded":
			stats.TotalFilesDownloaded = parseInt(val)
		case "total_input_size":
			stats.TotalInputSize = parseFloat(val)
		case "total_output_size":
			stats.TotalOutputSize = parseFloat(val)
		case "total_processing_time":
			stats.TotalProcessingTime = parseFloat(val)
		case "api_calls_count":
			stats.APICallsCount = parseInt(val)
		case "created_at":
			stats.CreatedAt = parseTimePtr(val)
		case "first_upload_at":
			stats.FirstUploadAt = parseTimePtr(val)
		case "last_upload_at":
			stats.LastUploadAt = parseTimePtr(val)
		case "last_download_at":
			stats.LastDownloadAt = parseTimePtr(val)
		case "last_api_call_at":
			stats.LastAPICallAt = parseTimePtr(val)
		default:
			if strings.HasPrefix(field, typeFieldPrefix) {
				stats.ProcessingTypes[strings.TrimPrefix(field, typeFieldPrefix)] = parseInt(val)
			}
		}
	}
	return stats, nil
}

// Delete removes a ledger row. Only the explicit guest-deletion cascade
// and the admin surface call this.
func (s *UsageStore) Delete(ctx context.Context, principalKey string) error {
	return s.rdb.Del(ctx, usageKey(principalKey)).Err()
}

// targets returns the per-principal hash plus the global one. Unowned
// (anonymous, no guest id) events only hit the global ledger.
func (s *UsageStore) targets(principalKey string) []string {
	if principalKey == "" || principalKey == GlobalLedger {
		return []string{usageKey(GlobalLedger)}
	}
	return []string{usageKey(principalKey), usageKey(GlobalLedger)}
}
