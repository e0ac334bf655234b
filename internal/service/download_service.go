package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/universalmedia/api/internal/config"
	"github.com/universalmedia/api/internal/model"
	"github.com/universalmedia/api/internal/store"
	"github.com/universalmedia/api/internal/worker"
)

// ErrInvalidStatusFilter is returned by List for an unknown status value
var ErrInvalidStatusFilter = errors.New("invalid status filter")

// DownloadService is the task scheduler: it owns submission, status
// queries, cancellation and the check/wait polling primitives. Task
// state lives in the store; execution happens in the worker.
type DownloadService struct {
	store  *store.Store
	worker *worker.DownloadWorker

	defaultVideoQuality string
	defaultAudioFormat  string
	defaultAudioQuality string
}

func NewDownloadService(st *store.Store, w *worker.DownloadWorker, cfg *config.DownloadsConfig) *DownloadService {
	return &DownloadService{
		store:               st,
		worker:              w,
		defaultVideoQuality: cfg.DefaultVideoQuality,
		defaultAudioFormat:  cfg.DefaultAudioFormat,
		defaultAudioQuality: cfg.DefaultAudioQuality,
	}
}

// Start registers a pending task and hands it to the worker. It returns
// immediately; download progress is observed via status/check/wait.
func (s *DownloadService) Start(req *model.StartDownloadRequest) (*model.StartDownloadResponse, error) {
	dr := s.normalizeRequest(req)

	taskID := uuid.New().String()
	now := time.Now().UTC()
	task := &model.Task{
		ID:        taskID,
		Status:    model.TaskStatusPending,
		Request:   dr,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(task); err != nil {
		return nil, fmt.Errorf("failed to register task: %w", err)
	}

	s.worker.Start(taskID)

	return &model.StartDownloadResponse{
		TaskID:                 taskID,
		Status:                 model.TaskStatusPending,
		URL:                    dr.URL,
		RecommendedPollSeconds: 2,
	}, nil
}

// normalizeRequest applies the configured defaults the same way for
// every submission so the stored request snapshot is self-contained.
func (s *DownloadService) normalizeRequest(req *model.StartDownloadRequest) model.DownloadRequest {
	mediaType := model.MediaType(strings.ToLower(strings.TrimSpace(req.MediaType)))
	quality := strings.TrimSpace(req.Quality)
	audioFormat := strings.ToLower(strings.TrimSpace(req.AudioFormat))

	if mediaType == model.MediaTypeAudio {
		if quality == "" || !isDigits(quality) {
			quality = s.defaultAudioQuality
		}
		if audioFormat == "" {
			audioFormat = s.defaultAudioFormat
		}
	} else {
		if quality == "" {
			quality = s.defaultVideoQuality
		}
		audioFormat = ""
	}

	return model.DownloadRequest{
		URL:         req.URL,
		MediaType:   mediaType,
		Quality:     quality,
		AudioFormat: audioFormat,
	}
}

// GetStatus returns the current snapshot for a task
func (s *DownloadService) GetStatus(taskID string) (*model.TaskStatusResponse, error) {
	task, err := s.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	return task.ToResponse(), nil
}

// List returns task snapshots in submission order, optionally filtered
// by status.
func (s *DownloadService) List(statusFilter string) (*model.ListDownloadsResponse, error) {
	filter := model.TaskStatus(strings.ToLower(strings.TrimSpace(statusFilter)))
	if filter != "" && !filter.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusFilter, statusFilter)
	}

	tasks := s.store.List(filter)
	out := make([]*model.TaskStatusResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ToResponse())
	}
	return &model.ListDownloadsResponse{Tasks: out, Total: len(out)}, nil
}

// Cancel requests cooperative cancellation. Canceling a task that is
// already terminal is a no-op; the worker performs the actual
// transition within its poll interval.
func (s *DownloadService) Cancel(taskID string) (*model.CancelDownloadResponse, error) {
	task, err := s.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return &model.CancelDownloadResponse{TaskID: taskID, Status: string(task.Status)}, nil
	}

	err = s.store.Mutate(taskID, func(t *model.Task) error {
		t.CancelRequested = true
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Finished between the read and the flag write; still a no-op.
			task, getErr := s.store.Get(taskID)
			if getErr != nil {
				return nil, getErr
			}
			return &model.CancelDownloadResponse{TaskID: taskID, Status: string(task.Status)}, nil
		}
		return nil, err
	}
	return &model.CancelDownloadResponse{TaskID: taskID, Status: "cancel_requested"}, nil
}

// Check buckets the watched tasks without blocking. Every terminal task
// (completed, failed or canceled) lands in Completed with its full
// snapshot; the rest stay in Pending. An unknown id fails the whole
// call.
func (s *DownloadService) Check(taskIDs []string) (*model.CheckDownloadsResponse, error) {
	completed := make([]*model.TaskStatusResponse, 0, len(taskIDs))
	pending := make([]string, 0, len(taskIDs))

	for _, id := range taskIDs {
		task, err := s.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		if task.Status.IsTerminal() {
			completed = append(completed, task.ToResponse())
		} else {
			pending = append(pending, id)
		}
	}

	return &model.CheckDownloadsResponse{
		Completed: completed,
		Pending:   pending,
		AllDone:   len(pending) == 0,
	}, nil
}

// Wait blocks until the quorum is reached or the timeout elapses.
// mode "any" needs one terminal task, mode "all" needs every one.
// Timeout is not an error: the partial buckets come back with TimedOut
// set. The store's change notification wakes the wait, so there is no
// polling loop between state changes.
func (s *DownloadService) Wait(ctx context.Context, taskIDs []string, mode string, timeout time.Duration) (*model.WaitDownloadsResponse, error) {
	if mode != "any" && mode != "all" {
		return nil, fmt.Errorf("invalid wait mode %q", mode)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		// Grab the notification channel before evaluating so a change
		// landing in between cannot be missed.
		changed := s.store.Watch()

		check, err := s.Check(taskIDs)
		if err != nil {
			return nil, err
		}
		if check.AllDone || (mode == "any" && len(check.Completed) > 0) {
			return &model.WaitDownloadsResponse{
				Completed: check.Completed,
				Pending:   check.Pending,
				AllDone:   check.AllDone,
			}, nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return &model.WaitDownloadsResponse{
				Completed: check.Completed,
				Pending:   check.Pending,
				AllDone:   check.AllDone,
				TimedOut:  true,
			}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
