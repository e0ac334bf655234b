package service

import (
	"context"
	"strings"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/config"
	"github.com/universalmedia/api/internal/model"
)

// MediaService serves the synchronous tool paths: support checks,
// metadata, subtitles and blocking downloads. No task is created; the
// caller waits for the engine.
type MediaService struct {
	engine client.Engine

	defaultVideoQuality string
	defaultAudioFormat  string
	defaultAudioQuality string
}

func NewMediaService(engine client.Engine, cfg *config.DownloadsConfig) *MediaService {
	return &MediaService{
		engine:              engine,
		defaultVideoQuality: cfg.DefaultVideoQuality,
		defaultAudioFormat:  cfg.DefaultAudioFormat,
		defaultAudioQuality: cfg.DefaultAudioQuality,
	}
}

func (s *MediaService) CheckSupport(ctx context.Context, url string) (*model.CheckSupportResponse, error) {
	return s.engine.CheckSupport(ctx, url)
}

func (s *MediaService) Metadata(ctx context.Context, url string) (*model.MediaMetadata, error) {
	return s.engine.Metadata(ctx, url)
}

// DownloadVideo blocks the caller for the full download duration
func (s *MediaService) DownloadVideo(ctx context.Context, req *model.DownloadVideoRequest) (*model.DownloadMediaResponse, error) {
	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = s.defaultVideoQuality
	}

	result, err := s.engine.Fetch(ctx, model.DownloadRequest{
		URL:           req.URL,
		MediaType:     model.MediaTypeVideo,
		Quality:       quality,
		MaxFilesizeMB: req.MaxFilesizeMB,
	}, nil)
	if err != nil {
		return nil, err
	}
	return mediaResponse(req.URL, result), nil
}

// DownloadAudio blocks the caller for the full download duration
func (s *MediaService) DownloadAudio(ctx context.Context, req *model.DownloadAudioRequest) (*model.DownloadMediaResponse, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = s.defaultAudioFormat
	}
	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = s.defaultAudioQuality
	}

	result, err := s.engine.Fetch(ctx, model.DownloadRequest{
		URL:         req.URL,
		MediaType:   model.MediaTypeAudio,
		Quality:     quality,
		AudioFormat: format,
	}, nil)
	if err != nil {
		return nil, err
	}
	return mediaResponse(req.URL, result), nil
}

func (s *MediaService) Subtitles(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error) {
	return s.engine.Subtitles(ctx, req)
}

func mediaResponse(url string, result *client.FetchResult) *model.DownloadMediaResponse {
	return &model.DownloadMediaResponse{
		URL:      url,
		FilePath: result.FilePath,
		FileSize: result.FileSize,
		Metadata: result.Metadata,
		Warning:  result.Warning,
	}
}
