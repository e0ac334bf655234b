package client

import (
	"context"
	"fmt"

	"github.com/universalmedia/api/internal/model"
)

// Download error kinds recorded on failed tasks
const (
	ErrorKindUnsupportedURL = "unsupported_url"
	ErrorKindNetwork        = "network"
	ErrorKindTimeout        = "timeout"
	ErrorKindEngine         = "engine"
)

// DownloadError is a structured failure reported by the engine. It is
// stored verbatim on the task record and never raised back to the
// caller that submitted the task.
type DownloadError struct {
	Kind    string
	Message string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ProgressFunc receives progress ticks from an in-flight fetch.
// percent is 0..100, stage a short human-readable description.
type ProgressFunc func(percent float64, stage string)

// FetchResult is the artifact produced by a finished fetch. Warning is
// set when the engine reported an error but a usable file still landed.
type FetchResult struct {
	FilePath string
	FileSize int64
	Metadata map[string]any
	Warning  string
}

// Engine is the media-fetching collaborator the orchestrator drives.
// Fetch observes cancellation through ctx; implementations must check
// it at least once per progress tick and clean up partial files when it
// fires. Failures are reported as *DownloadError.
type Engine interface {
	CheckSupport(ctx context.Context, url string) (*model.CheckSupportResponse, error)
	Metadata(ctx context.Context, url string) (*model.MediaMetadata, error)
	Subtitles(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error)
	Fetch(ctx context.Context, req model.DownloadRequest, onProgress ProgressFunc) (*FetchResult, error)
}
