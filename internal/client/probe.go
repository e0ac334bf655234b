package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/universalmedia/api/internal/model"
)

// ytdlpInfo is the subset of yt-dlp's JSON dump the probes consume
type ytdlpInfo struct {
	Title             string                     `json:"title"`
	Uploader          string                     `json:"uploader"`
	Duration          float64                    `json:"duration"`
	UploadDate        string                     `json:"upload_date"`
	ViewCount         int64                      `json:"view_count"`
	Extractor         string                     `json:"extractor"`
	Thumbnail         string                     `json:"thumbnail"`
	Description       string                     `json:"description"`
	WebpageURL        string                     `json:"webpage_url"`
	Subtitles         map[string][]subtitleTrack `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleTrack `json:"automatic_captions"`
}

type subtitleTrack struct {
	URL string `json:"url"`
	Ext string `json:"ext"`
}

// probe runs a metadata-only yt-dlp invocation and parses its JSON dump
func (c *YtDlpClient) probe(ctx context.Context, url string) (*ytdlpInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binPath,
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &DownloadError{Kind: ErrorKindTimeout, Message: "metadata probe timed out"}
		}
		return nil, &DownloadError{Kind: classifyFetchError(errors.New(msg)), Message: msg}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, &DownloadError{Kind: ErrorKindEngine, Message: fmt.Sprintf("parse engine output: %v", err)}
	}
	return &info, nil
}

func (c *YtDlpClient) CheckSupport(ctx context.Context, url string) (*model.CheckSupportResponse, error) {
	info, err := c.probe(ctx, url)
	if err != nil {
		var dlErr *DownloadError
		if errors.As(err, &dlErr) && dlErr.Kind == ErrorKindUnsupportedURL {
			return &model.CheckSupportResponse{URL: url, Supported: false, Reason: dlErr.Message}, nil
		}
		return nil, err
	}
	return &model.CheckSupportResponse{URL: url, Supported: true, Extractor: info.Extractor}, nil
}

func (c *YtDlpClient) Metadata(ctx context.Context, url string) (*model.MediaMetadata, error) {
	info, err := c.probe(ctx, url)
	if err != nil {
		return nil, err
	}
	return &model.MediaMetadata{
		URL:         firstNonEmpty(info.WebpageURL, url),
		Title:       info.Title,
		Uploader:    info.Uploader,
		Duration:    info.Duration,
		UploadDate:  info.UploadDate,
		ViewCount:   info.ViewCount,
		Extractor:   info.Extractor,
		Thumbnail:   info.Thumbnail,
		Description: truncate(info.Description, 2000),
	}, nil
}

func (c *YtDlpClient) Subtitles(ctx context.Context, req *model.SubtitlesRequest) (*model.SubtitlesResponse, error) {
	info, err := c.probe(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	languages := req.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	lang, track, automatic := pickSubtitleTrack(info, languages, c.subtitleFormat)
	if track == nil {
		return nil, &DownloadError{
			Kind:    ErrorKindEngine,
			Message: fmt.Sprintf("no subtitles available for languages: %s", strings.Join(languages, ", ")),
		}
	}

	content, err := c.fetchSubtitleContent(ctx, track.URL)
	if err != nil {
		return nil, err
	}

	resp := &model.SubtitlesResponse{
		URL:       req.URL,
		Language:  lang,
		Format:    track.Ext,
		Automatic: automatic,
	}

	if req.SaveToFile {
		path, err := c.saveSubtitles(info.Title, lang, track.Ext, content)
		if err != nil {
			return nil, err
		}
		resp.FilePath = path
		return resp, nil
	}

	if len(content) > c.subtitleMaxChars {
		content = truncate(content, c.subtitleMaxChars)
		resp.Truncated = true
	}
	resp.Content = content
	return resp, nil
}

// pickSubtitleTrack resolves the first requested language, preferring
// uploader subtitles over automatic captions and the configured format
// over whatever comes first.
func pickSubtitleTrack(info *ytdlpInfo, languages []string, preferredExt string) (string, *subtitleTrack, bool) {
	sources := []struct {
		tracks    map[string][]subtitleTrack
		automatic bool
	}{
		{info.Subtitles, false},
		{info.AutomaticCaptions, true},
	}

	for _, lang := range languages {
		for _, src := range sources {
			if len(src.tracks) == 0 {
				continue
			}
			key, tracks := matchLanguage(src.tracks, lang)
			if len(tracks) == 0 {
				continue
			}
			track := tracks[0]
			for i := range tracks {
				if tracks[i].Ext == preferredExt {
					track = tracks[i]
					break
				}
			}
			return key, &track, src.automatic
		}
	}
	return "", nil, false
}

// matchLanguage tries an exact key first, then a prefix match so "en"
// finds "en-US" captions.
func matchLanguage(tracks map[string][]subtitleTrack, lang string) (string, []subtitleTrack) {
	if ts, ok := tracks[lang]; ok {
		return lang, ts
	}
	for key, ts := range tracks {
		if strings.HasPrefix(key, lang+"-") {
			return key, ts
		}
	}
	return "", nil
}

func (c *YtDlpClient) fetchSubtitleContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{Kind: ErrorKindEngine, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &DownloadError{Kind: ErrorKindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{Kind: ErrorKindNetwork, Message: fmt.Sprintf("subtitle fetch returned %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", &DownloadError{Kind: ErrorKindNetwork, Message: err.Error()}
	}
	return string(body), nil
}

func (c *YtDlpClient) saveSubtitles(title, lang, ext, content string) (string, error) {
	if err := os.MkdirAll(c.subtitlesDir, 0o755); err != nil {
		return "", &DownloadError{Kind: ErrorKindEngine, Message: fmt.Sprintf("create subtitles dir: %v", err)}
	}
	name := fmt.Sprintf("%s.%s.%s", sanitizeFilename(firstNonEmpty(title, "subtitles")), lang, ext)
	path := filepath.Join(c.subtitlesDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", &DownloadError{Kind: ErrorKindEngine, Message: fmt.Sprintf("write subtitles: %v", err)}
	}
	return path, nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	out := strings.TrimSpace(replacer.Replace(name))
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
