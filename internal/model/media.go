package model

// StartDownloadRequest starts a background download task
type StartDownloadRequest struct {
	URL         string `json:"url" validate:"required,url"`
	MediaType   string `json:"media_type" validate:"required,oneof=video audio"`
	Quality     string `json:"quality" validate:"omitempty,max=32"`
	AudioFormat string `json:"audio_format" validate:"omitempty,oneof=mp3 m4a opus flac wav aac vorbis"`
}

// StartDownloadResponse acknowledges a submitted task
type StartDownloadResponse struct {
	TaskID                 string     `json:"task_id"`
	Status                 TaskStatus `json:"status"`
	URL                    string     `json:"url"`
	RecommendedPollSeconds int        `json:"recommended_poll_seconds"`
}

// ListDownloadsResponse lists task snapshots in submission order
type ListDownloadsResponse struct {
	Tasks []*TaskStatusResponse `json:"tasks"`
	Total int                   `json:"total"`
}

// CancelDownloadResponse acknowledges a cancellation request
type CancelDownloadResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// CheckDownloadsRequest polls a set of tasks without blocking
type CheckDownloadsRequest struct {
	TaskIDs []string `json:"task_ids" validate:"required,min=1,dive,required"`
}

// CheckDownloadsResponse buckets watched tasks.
// Completed holds every task in a terminal state (completed, failed or
// canceled, each with its full snapshot); Pending holds ids still
// pending or downloading.
type CheckDownloadsResponse struct {
	Completed []*TaskStatusResponse `json:"completed"`
	Pending   []string              `json:"pending"`
	AllDone   bool                  `json:"all_done"`
}

// WaitDownloadsRequest blocks until tasks settle or the timeout elapses
type WaitDownloadsRequest struct {
	TaskIDs        []string `json:"task_ids" validate:"required,min=1,dive,required"`
	Mode           string   `json:"mode" validate:"required,oneof=any all"`
	TimeoutSeconds float64  `json:"timeout_seconds" validate:"required,gt=0,lte=3600"`
}

// WaitDownloadsResponse is the blocking variant's result; on timeout the
// partial buckets are returned with TimedOut set instead of an error
type WaitDownloadsResponse struct {
	Completed []*TaskStatusResponse `json:"completed"`
	Pending   []string              `json:"pending"`
	AllDone   bool                  `json:"all_done"`
	TimedOut  bool                  `json:"timed_out"`
}

// CheckSupportRequest asks whether the engine has an extractor for a URL
type CheckSupportRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// CheckSupportResponse reports extractor support for a URL
type CheckSupportResponse struct {
	URL       string `json:"url"`
	Supported bool   `json:"supported"`
	Extractor string `json:"extractor,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// MetadataRequest extracts metadata without downloading
type MetadataRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// MediaMetadata is the trimmed metadata payload for a URL
type MediaMetadata struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	UploadDate  string  `json:"upload_date,omitempty"`
	ViewCount   int64   `json:"view_count,omitempty"`
	Extractor   string  `json:"extractor,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Description string  `json:"description,omitempty"`
}

// DownloadVideoRequest is the synchronous video download path
type DownloadVideoRequest struct {
	URL           string `json:"url" validate:"required,url"`
	Quality       string `json:"quality" validate:"omitempty,max=32"`
	MaxFilesizeMB int    `json:"max_filesize_mb" validate:"omitempty,min=1,max=10240"`
}

// DownloadAudioRequest is the synchronous audio download path
type DownloadAudioRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Format  string `json:"format" validate:"omitempty,oneof=mp3 m4a opus flac wav aac vorbis"`
	Quality string `json:"quality" validate:"omitempty,max=8"`
}

// DownloadMediaResponse is the synchronous download result
type DownloadMediaResponse struct {
	URL      string         `json:"url"`
	FilePath string         `json:"file_path"`
	FileSize int64          `json:"file_size"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Warning  string         `json:"warning,omitempty"`
}

// SubtitlesRequest fetches subtitles for a URL
type SubtitlesRequest struct {
	URL        string   `json:"url" validate:"required,url"`
	Languages  []string `json:"languages" validate:"omitempty,max=10,dive,min=2,max=10"`
	SaveToFile bool     `json:"save_to_file"`
}

// SubtitlesResponse carries subtitle content or the path it was saved to
type SubtitlesResponse struct {
	URL       string `json:"url"`
	Language  string `json:"language"`
	Format    string `json:"format"`
	Content   string `json:"content,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Automatic bool   `json:"automatic,omitempty"`
}
