package client

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/universalmedia/api/internal/config"
	"github.com/universalmedia/api/internal/model"
)

// YtDlpClient implements Engine on top of yt-dlp: downloads go through
// the go-ytdlp wrapper, metadata/subtitle probes exec the binary
// directly and parse its JSON output.
type YtDlpClient struct {
	downloadDir      string
	subtitlesDir     string
	subtitleFormat   string
	subtitleMaxChars int
	binPath          string
	probeTimeout     time.Duration
	progressInterval time.Duration
}

var _ Engine = (*YtDlpClient)(nil)

func NewYtDlpClient(cfg *config.Config) *YtDlpClient {
	return &YtDlpClient{
		downloadDir:      cfg.Downloads.Dir,
		subtitlesDir:     cfg.Subtitles.Dir,
		subtitleFormat:   cfg.Subtitles.Format,
		subtitleMaxChars: cfg.Subtitles.MaxChars,
		binPath:          cfg.Engine.BinPath,
		probeTimeout:     time.Duration(cfg.Engine.ProbeTimeoutSeconds) * time.Second,
		progressInterval: 500 * time.Millisecond,
	}
}

// Fetch downloads one media item. Cancellation is observed through ctx;
// on cancellation this fetch's partial .part files are removed before
// returning.
func (c *YtDlpClient) Fetch(ctx context.Context, req model.DownloadRequest, onProgress ProgressFunc) (*FetchResult, error) {
	if err := os.MkdirAll(c.downloadDir, 0o755); err != nil {
		return nil, &DownloadError{Kind: ErrorKindEngine, Message: fmt.Sprintf("create download dir: %v", err)}
	}

	dl := c.buildFetch(req)

	// The download dir is shared between concurrent fetches, so cleanup
	// may only touch files this fetch reported in its progress updates.
	var mu sync.Mutex
	files := make(map[string]struct{})

	dl.ProgressFunc(c.progressInterval, func(update ytdlp.ProgressUpdate) {
		mu.Lock()
		if update.Filename != "" {
			files[update.Filename] = struct{}{}
		}
		if update.Info != nil && update.Info.Filename != nil && *update.Info.Filename != "" {
			files[*update.Info.Filename] = struct{}{}
		}
		mu.Unlock()

		if onProgress != nil {
			pct := progressPercent(float64(update.DownloadedBytes), float64(update.TotalBytes))
			onProgress(pct, "downloading")
		}
	})

	result, err := dl.Run(ctx, req.URL)

	if ctx.Err() != nil {
		mu.Lock()
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		mu.Unlock()
		c.cleanupPartFiles(names)
		return nil, ctx.Err()
	}
	if err != nil {
		// A postprocessing hiccup can still leave a usable file behind;
		// report it with a warning instead of failing the task.
		if res := c.resultFromExtractedInfo(result); res != nil {
			res.Warning = err.Error()
			return res, nil
		}
		return nil, &DownloadError{Kind: classifyFetchError(err), Message: err.Error()}
	}

	res := c.resultFromExtractedInfo(result)
	if res == nil {
		return nil, &DownloadError{Kind: ErrorKindEngine, Message: "download finished but no output file was found"}
	}
	return res, nil
}

// resultFromExtractedInfo resolves the primary output file from a run
// result, skipping .part leftovers and files that no longer exist.
func (c *YtDlpClient) resultFromExtractedInfo(result *ytdlp.Result) *FetchResult {
	if result == nil {
		return nil
	}
	info, err := result.GetExtractedInfo()
	if err != nil {
		return nil
	}
	for _, item := range info {
		if item == nil || item.Filename == nil || *item.Filename == "" {
			continue
		}
		path := *item.Filename
		if strings.HasSuffix(path, ".part") {
			continue
		}
		stat, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		res := &FetchResult{FilePath: path, FileSize: stat.Size()}
		if item.Title != nil && *item.Title != "" {
			res.Metadata = map[string]any{"title": *item.Title}
		}
		return res
	}
	return nil
}

// buildFetch assembles the yt-dlp invocation for one request
func (c *YtDlpClient) buildFetch(req model.DownloadRequest) *ytdlp.Command {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(c.downloadDir, "%(title)s.%(ext)s"))

	if req.MediaType == model.MediaTypeAudio {
		return dl.ExtractAudio().
			AudioFormat(req.AudioFormat).
			AudioQuality(req.Quality)
	}

	dl = dl.FormatSort(videoFormatSort(req.Quality))
	if req.MaxFilesizeMB > 0 {
		dl = dl.MaxFileSize(fmt.Sprintf("%dM", req.MaxFilesizeMB))
	}
	return dl
}

// cleanupPartFiles removes the partial artifacts of a canceled fetch.
// Only the given paths (and their .part variants) are touched; globbing
// the shared download dir would hit other tasks' in-flight files.
func (c *YtDlpClient) cleanupPartFiles(names []string) {
	for _, name := range names {
		candidates := []string{name + ".part"}
		if strings.HasSuffix(name, ".part") {
			candidates = []string{name}
		}
		for _, p := range candidates {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Printf("Failed to remove partial file %s: %v", p, err)
			}
		}
	}
}

// videoFormatSort maps a requested quality ("best", "1080p", "720")
// onto a yt-dlp format sort expression preferring mp4 containers.
func videoFormatSort(quality string) string {
	q := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(quality)), "p")
	if q == "" || q == "best" {
		return "res,ext:mp4:m4a"
	}
	return fmt.Sprintf("res:%s,ext:mp4:m4a", q)
}

// progressPercent converts byte counters into a 0..99 percentage; 100
// is reserved for the completed transition.
func progressPercent(downloaded, total float64) float64 {
	if total <= 0 || downloaded < 0 {
		return 0
	}
	pct := downloaded / total * 100
	if pct > 99 {
		return 99
	}
	return pct
}

// classifyFetchError buckets an engine failure into a stable error kind
func classifyFetchError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unsupported url"), strings.Contains(msg, "no suitable extractor"):
		return ErrorKindUnsupportedURL
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return ErrorKindTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"),
		strings.Contains(msg, "resolve"), strings.Contains(msg, "tls"),
		strings.Contains(msg, "unable to download"):
		return ErrorKindNetwork
	default:
		return ErrorKindEngine
	}
}
