package model

import "time"

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
	TaskStatusCanceled    TaskStatus = "canceled"
)

// IsTerminal returns true once the task can no longer change state
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCanceled
}

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDownloading, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCanceled:
		return true
	}
	return false
}

// MediaType selects the download pipeline
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// DownloadRequest is the immutable snapshot of the originating request.
// It is never mutated after task creation.
type DownloadRequest struct {
	URL           string    `json:"url"`
	MediaType     MediaType `json:"media_type"`
	Quality       string    `json:"quality"`
	AudioFormat   string    `json:"audio_format,omitempty"`
	MaxFilesizeMB int       `json:"max_filesize_mb,omitempty"`
}

// DownloadResult holds the artifact produced by a completed download
type DownloadResult struct {
	FilePath string         `json:"file_path"`
	FileSize int64          `json:"file_size"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskError is the structured error recorded on a failed task
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Task is one tracked download from submission to terminal outcome.
// The store hands out copies; only the worker bound to the task id
// writes status, progress, result and error.
type Task struct {
	ID              string
	Status          TaskStatus
	Request         DownloadRequest
	Progress        float64 // 0..100
	Stage           string
	Result          *DownloadResult
	Error           *TaskError
	Warning         string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Clone returns a deep copy safe to hand outside the store
func (t *Task) Clone() *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		if t.Result.Metadata != nil {
			r.Metadata = make(map[string]any, len(t.Result.Metadata))
			for k, v := range t.Result.Metadata {
				r.Metadata[k] = v
			}
		}
		c.Result = &r
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// TaskStatusResponse is the JSON shape returned for a task snapshot
type TaskStatusResponse struct {
	TaskID      string     `json:"task_id"`
	URL         string     `json:"url"`
	MediaType   MediaType  `json:"media_type"`
	Quality     string     `json:"quality"`
	Status      TaskStatus `json:"status"`
	IsDone      bool       `json:"is_done"`
	Progress    float64    `json:"progress"`
	Stage       string     `json:"stage,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	Error       *TaskError `json:"error"`
	Warning     string     `json:"warning,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ToResponse converts a task snapshot into its JSON payload
func (t *Task) ToResponse() *TaskStatusResponse {
	resp := &TaskStatusResponse{
		TaskID:      t.ID,
		URL:         t.Request.URL,
		MediaType:   t.Request.MediaType,
		Quality:     t.Request.Quality,
		Status:      t.Status,
		IsDone:      t.Status.IsTerminal(),
		Progress:    clampProgress(t.Progress),
		Stage:       t.Stage,
		Error:       t.Error,
		Warning:     t.Warning,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.Result != nil {
		resp.FilePath = t.Result.FilePath
		resp.FileSize = t.Result.FileSize
	}
	return resp
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
