package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/middleware"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/internal/store"
	"github.com/whazzaudio/api/internal/worker"
)

// recordingEnqueuer captures tasks so tests can drive the worker
// synchronously.
type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (f *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: "audio"}, nil
}

// echoRunner stands in for the enhancement model: it copies the input
// into the work directory.
type echoRunner struct{}

func (echoRunner) Run(_ context.Context, inputPath, workDir string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workDir, "enhanced.wav"), data, 0o644)
}

type testApp struct {
	app      *fiber.App
	cfg      *config.Config
	enqueuer *recordingEnqueuer
	worker   *worker.ProcessWorker
}

// setupApp wires a Fiber app like main.go, backed by an in-process
// Redis and a recording task queue.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			AccessExpiration:  30 * time.Minute,
			RefreshExpiration: 7 * 24 * time.Hour,
			GuestExpiration:   7 * 24 * time.Hour,
		},
		Upload: config.UploadConfig{
			Dir:            t.TempDir(),
			MaxFileSizeMB:  10,
			AllowedFormats: []string{".wav", ".mp3"},
			ExpiryHours:    24,
		},
		Processing: config.ProcessingConfig{
			OutputDir:   t.TempDir(),
			ModelName:   "TestModel",
			HardTimeout: time.Minute,
		},
		RateLimit: config.RateLimitConfig{UploadsPerHour: 10000},
		Limits: config.LimitsConfig{
			UserFiles: 100, UserStorageMB: 1000, UserProcessingMinutes: 60,
			GuestFiles: 5, GuestStorageMB: 50, GuestProcessingMinutes: 10,
		},
	}

	validate := validator.New()
	issuer := auth.NewTokenIssuer(cfg.JWT.Secret)

	jobStore := store.NewJobStore(rdb)
	userStore := store.NewUserStore(rdb)
	guestStore := store.NewGuestStore(rdb)
	usageStore := store.NewUsageStore(rdb)

	enqueuer := &recordingEnqueuer{}
	processWorker := worker.NewProcessWorker(cfg, jobStore, usageStore, echoRunner{}, nil)
	cleanupWorker := worker.NewCleanupWorker(jobStore, guestStore)

	audioService := service.NewAudioService(cfg, jobStore, guestStore, usageStore, enqueuer)
	usageService := service.NewUsageService(cfg, usageStore)
	guestService := service.NewGuestService(cfg, guestStore, jobStore, usageStore, issuer)
	authService := service.NewAuthService(cfg, userStore, guestStore, issuer)
	adminService := service.NewAdminService(userStore, guestStore, jobStore, usageStore, usageService, cleanupWorker)

	audioHandler := NewAudioHandler(audioService)
	usageHandler := NewUsageHandler(usageService)
	guestHandler := NewGuestHandler(guestService)
	authHandler := NewAuthHandler(authService, validate)
	adminHandler := NewAdminHandler(adminService)

	authMiddleware := middleware.NewAuthMiddleware(issuer, userStore, guestStore, usageStore)
	rateLimiter := middleware.NewRateLimiter(rdb)

	app := fiber.New(fiber.Config{BodyLimit: 20 * 1024 * 1024})

	api := app.Group("/api", authMiddleware.Resolve())

	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Get("/me", authMiddleware.RequireUser(), authHandler.Me)

	guest := api.Group("/guest")
	guest.Post("/session", guestHandler.CreateSession)
	guest.Get("/session", guestHandler.GetSession)
	guest.Delete("/session", guestHandler.DeleteSession)

	audio := api.Group("/audio")
	audio.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour), audioHandler.Upload)
	audio.Get("/status/:jobId", audioHandler.Status)
	audio.Get("/download/:jobId", audioHandler.Download)

	usage := api.Group("/usage", authMiddleware.RequireAuthenticated())
	usage.Get("/summary", usageHandler.Summary)
	usage.Get("/limits", usageHandler.Limits)

	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/stats", adminHandler.Stats)
	admin.Post("/cleanup", adminHandler.RunCleanup)

	return &testApp{app: app, cfg: cfg, enqueuer: enqueuer, worker: processWorker}
}

// drainQueue runs the worker over every task recorded so far.
func (ta *testApp) drainQueue(t *testing.T) {
	t.Helper()
	for _, task := range ta.enqueuer.tasks {
		if err := ta.worker.ProcessTask(context.Background(), task); err != nil {
			t.Fatalf("worker: %v", err)
		}
	}
	ta.enqueuer.tasks = nil
}

func (ta *testApp) request(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// createGuestSession returns the guest token and guest id.
func (ta *testApp) createGuestSession(t *testing.T) (string, string) {
	t.Helper()

	resp := ta.request(t, http.MethodPost, "/api/guest/session", "", nil)
	assertStatus(t, resp, http.StatusCreated)
	body := parseJSON(t, resp)
	token, _ := body["guestToken"].(string)
	guestID, _ := body["guestId"].(string)
	if token == "" || guestID == "" {
		t.Fatalf("incomplete guest session response: %v", body)
	}
	return token, guestID
}

// uploadFile posts a multipart upload and returns the parsed response.
func (ta *testApp) uploadFile(t *testing.T, token, filename string, data []byte) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/audio/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	return parseJSON(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
