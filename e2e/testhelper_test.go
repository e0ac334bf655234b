package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/config"
	"github.com/universalmedia/api/internal/handler"
	"github.com/universalmedia/api/internal/model"
	"github.com/universalmedia/api/internal/service"
	"github.com/universalmedia/api/internal/store"
	"github.com/universalmedia/api/internal/worker"
)

// fakeEngine is a scripted stand-in for the yt-dlp client. Each field
// defaults to a benign success so tests only script what they assert on.
type fakeEngine struct {
	fetch        func(ctx context.Context, req model.DownloadRequest, onProgress client.ProgressFunc) (*client.FetchResult, error)
	checkSupport func(ctx context.Context, url string) (*model.CheckSupportResponse, error)
	metadata     func(ctx context.Context, url string) (*model.MediaMetadata, error)
	subtitles    func(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error)
}

func (f *fakeEngine) Fetch(ctx context.Context, req model.DownloadRequest, onProgress client.ProgressFunc) (*client.FetchResult, error) {
	if f.fetch != nil {
		return f.fetch(ctx, req, onProgress)
	}
	return &client.FetchResult{FilePath: "/tmp/media.mp4", FileSize: 1024}, nil
}

func (f *fakeEngine) CheckSupport(ctx context.Context, url string) (*model.CheckSupportResponse, error) {
	if f.checkSupport != nil {
		return f.checkSupport(ctx, url)
	}
	return &model.CheckSupportResponse{URL: url, Supported: true, Extractor: "youtube"}, nil
}

func (f *fakeEngine) Metadata(ctx context.Context, url string) (*model.MediaMetadata, error) {
	if f.metadata != nil {
		return f.metadata(ctx, url)
	}
	return &model.MediaMetadata{URL: url, Title: "Test Video", Uploader: "tester"}, nil
}

func (f *fakeEngine) Subtitles(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error) {
	if f.subtitles != nil {
		return f.subtitles(ctx, req)
	}
	return &model.SubtitlesResponse{URL: req.URL, Language: "en", Format: "vtt", Content: "WEBVTT"}, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.Store
}

// setupApp creates a Fiber app identical to main.go but backed by the
// given fake engine so no yt-dlp binary or network is needed.
func setupApp(t *testing.T, engine client.Engine) *testApp {
	t.Helper()

	if engine == nil {
		engine = &fakeEngine{}
	}

	cfg := &config.DownloadsConfig{
		Dir:                 t.TempDir(),
		MaxConcurrent:       4,
		DefaultVideoQuality: "best",
		DefaultAudioFormat:  "mp3",
		DefaultAudioQuality: "192",
		PollIntervalMS:      10,
	}

	validate := validator.New()

	taskStore := store.New()
	downloadWorker := worker.New(taskStore, engine, nil, cfg.MaxConcurrent, 10*time.Millisecond)

	downloadService := service.NewDownloadService(taskStore, downloadWorker, cfg)
	mediaService := service.NewMediaService(engine, cfg)

	downloadsHandler := handler.NewDownloadsHandler(downloadService, validate)
	mediaHandler := handler.NewMediaHandler(mediaService, validate)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	media := api.Group("/media")
	media.Post("/check-support", mediaHandler.CheckSupport)
	media.Post("/metadata", mediaHandler.Metadata)
	media.Post("/download/video", mediaHandler.DownloadVideo)
	media.Post("/download/audio", mediaHandler.DownloadAudio)
	media.Post("/subtitles", mediaHandler.Subtitles)

	downloads := api.Group("/downloads")
	downloads.Post("/start", downloadsHandler.Start)
	downloads.Get("/status/:taskId", downloadsHandler.Status)
	downloads.Get("/", downloadsHandler.List)
	downloads.Post("/cancel/:taskId", downloadsHandler.Cancel)
	downloads.Post("/check", downloadsHandler.Check)
	downloads.Post("/wait", downloadsHandler.Wait)

	return &testApp{app: app, store: taskStore}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertErrorCode checks the error envelope code.
func assertErrorCode(t *testing.T, result map[string]interface{}, expected string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != expected {
		t.Errorf("expected error code %s, got %v", expected, errObj["code"])
	}
}

// pollUntilDone polls the status endpoint until the task reports done.
func pollUntilDone(t *testing.T, app *fiber.App, taskID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(app, http.MethodGet, "/api/downloads/status/"+taskID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)
		result := parseJSON(t, resp)
		if result["is_done"] == true {
			return result
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", taskID)
	return nil
}
