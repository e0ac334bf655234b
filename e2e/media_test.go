package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/model"
)

func TestCheckSupport_Supported(t *testing.T) {
	ta := setupApp(t, nil)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/check-support", `{"url": "https://example.com/watch?v=1"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["supported"] != true {
		t.Errorf("expected supported true, got %v", result["supported"])
	}
	if result["extractor"] != "youtube" {
		t.Errorf("expected extractor 'youtube', got %v", result["extractor"])
	}
}

func TestCheckSupport_Unsupported(t *testing.T) {
	engine := &fakeEngine{
		checkSupport: func(ctx context.Context, url string) (*model.CheckSupportResponse, error) {
			return &model.CheckSupportResponse{URL: url, Supported: false}, nil
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/check-support", `{"url": "https://example.com/plain-page"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["supported"] != false {
		t.Errorf("expected supported false, got %v", result["supported"])
	}
}

func TestCheckSupport_MissingURL(t *testing.T) {
	ta := setupApp(t, nil)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/check-support", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	assertErrorCode(t, parseJSON(t, resp), "VALIDATION_ERROR")
}

func TestMetadata_Success(t *testing.T) {
	engine := &fakeEngine{
		metadata: func(ctx context.Context, url string) (*model.MediaMetadata, error) {
			return &model.MediaMetadata{
				URL:      url,
				Title:    "Some Talk",
				Uploader: "confchannel",
				Duration: 1800,
			}, nil
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/metadata", `{"url": "https://example.com/watch?v=2"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["title"] != "Some Talk" {
		t.Errorf("expected title 'Some Talk', got %v", result["title"])
	}
	if result["uploader"] != "confchannel" {
		t.Errorf("expected uploader 'confchannel', got %v", result["uploader"])
	}
}

func TestMetadata_UnsupportedURL(t *testing.T) {
	engine := &fakeEngine{
		metadata: func(ctx context.Context, url string) (*model.MediaMetadata, error) {
			return nil, &client.DownloadError{Kind: client.ErrorKindUnsupportedURL, Message: "no extractor for url"}
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/metadata", `{"url": "https://example.com/plain-page"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	assertErrorCode(t, parseJSON(t, resp), "VALIDATION_ERROR")
}

func TestMetadata_EngineFailure(t *testing.T) {
	engine := &fakeEngine{
		metadata: func(ctx context.Context, url string) (*model.MediaMetadata, error) {
			return nil, &client.DownloadError{Kind: client.ErrorKindNetwork, Message: "dns lookup failed"}
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/metadata", `{"url": "https://example.com/watch?v=3"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadGateway)
	assertErrorCode(t, parseJSON(t, resp), "ENGINE_ERROR")
}

func TestDownloadVideo_Blocking(t *testing.T) {
	engine := &fakeEngine{
		fetch: func(ctx context.Context, req model.DownloadRequest, onProgress client.ProgressFunc) (*client.FetchResult, error) {
			if req.MediaType != model.MediaTypeVideo {
				t.Errorf("expected media type video, got %v", req.MediaType)
			}
			if req.Quality != "720p" {
				t.Errorf("expected quality '720p', got %q", req.Quality)
			}
			return &client.FetchResult{FilePath: "/tmp/talk.mp4", FileSize: 9000}, nil
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/download/video", `{"url": "https://example.com/watch?v=4", "quality": "720p"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["file_path"] != "/tmp/talk.mp4" {
		t.Errorf("expected file_path '/tmp/talk.mp4', got %v", result["file_path"])
	}
	if result["file_size"] != float64(9000) {
		t.Errorf("expected file_size 9000, got %v", result["file_size"])
	}
}

func TestDownloadAudio_DefaultsApplied(t *testing.T) {
	engine := &fakeEngine{
		fetch: func(ctx context.Context, req model.DownloadRequest, onProgress client.ProgressFunc) (*client.FetchResult, error) {
			if req.MediaType != model.MediaTypeAudio {
				t.Errorf("expected media type audio, got %v", req.MediaType)
			}
			if req.AudioFormat != "mp3" {
				t.Errorf("expected default audio format 'mp3', got %q", req.AudioFormat)
			}
			return &client.FetchResult{FilePath: "/tmp/talk.mp3", FileSize: 3000}, nil
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/download/audio", `{"url": "https://example.com/watch?v=5"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["file_path"] != "/tmp/talk.mp3" {
		t.Errorf("expected file_path '/tmp/talk.mp3', got %v", result["file_path"])
	}
}

func TestSubtitles_Success(t *testing.T) {
	engine := &fakeEngine{
		subtitles: func(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error) {
			return &model.SubtitlesResponse{
				URL:      req.URL,
				Language: "en",
				Format:   "vtt",
				Content:  "WEBVTT\n\n00:00.000 --> 00:02.000\nhello",
			}, nil
		},
	}
	ta := setupApp(t, engine)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/media/subtitles", `{"url": "https://example.com/watch?v=6", "languages": ["en"]}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["language"] != "en" {
		t.Errorf("expected language 'en', got %v", result["language"])
	}
	if result["content"] == nil || result["content"] == "" {
		t.Error("expected subtitle content in response")
	}
}
