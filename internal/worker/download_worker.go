package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/model"
	"github.com/universalmedia/api/internal/store"
)

// Notifier receives task lifecycle pushes for subscribers. The
// websocket hub implements it; a nil Notifier disables pushes.
type Notifier interface {
	BroadcastProgress(taskID string, status model.TaskStatus, progress float64, stage string)
	BroadcastComplete(taskID string, result *model.DownloadResult)
	BroadcastError(taskID string, taskErr model.TaskError)
}

// DownloadWorker drives tasks from pending to a terminal state. One
// goroutine per task; a slot semaphore bounds how many fetch the engine
// concurrently, the rest stay pending until a slot frees. Every spawned
// run is guaranteed to leave its task terminal, even on panic.
type DownloadWorker struct {
	store        *store.Store
	engine       client.Engine
	hub          Notifier
	slots        chan struct{}
	pollInterval time.Duration
}

func New(st *store.Store, engine client.Engine, hub Notifier, maxConcurrent int, pollInterval time.Duration) *DownloadWorker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &DownloadWorker{
		store:        st,
		engine:       engine,
		hub:          hub,
		slots:        make(chan struct{}, maxConcurrent),
		pollInterval: pollInterval,
	}
}

// Start launches the executor goroutine bound to taskID
func (w *DownloadWorker) Start(taskID string) {
	go w.run(taskID)
}

func (w *DownloadWorker) run(taskID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker for task %s panicked: %v", taskID, r)
			w.finishFailed(taskID, model.TaskError{
				Kind:    "internal",
				Message: fmt.Sprintf("worker panic: %v", r),
			})
		}
	}()

	if !w.acquireSlot(taskID) {
		return
	}
	defer func() { <-w.slots }()

	snapshot, err := w.store.Get(taskID)
	if err != nil {
		log.Printf("Worker started for unknown task %s: %v", taskID, err)
		return
	}
	if snapshot.CancelRequested {
		w.finishCanceled(taskID)
		return
	}

	if err := w.store.Mutate(taskID, func(t *model.Task) error {
		t.Status = model.TaskStatusDownloading
		t.Progress = 0
		t.Stage = "starting"
		return nil
	}); err != nil {
		// Terminal before the worker ever ran means something other
		// than this executor transitioned the record.
		log.Printf("Task %s could not enter downloading: %v", taskID, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go w.watchCancel(taskID, cancel, stop)

	onProgress := func(pct float64, stage string) {
		if pct > 99 {
			pct = 99
		}
		err := w.store.Mutate(taskID, func(t *model.Task) error {
			t.Progress = pct
			t.Stage = stage
			return nil
		})
		if err != nil {
			// Progress racing a terminal transition is dropped, not an error.
			return
		}
		if w.hub != nil {
			w.hub.BroadcastProgress(taskID, model.TaskStatusDownloading, pct, stage)
		}
	}

	result, err := w.engine.Fetch(ctx, snapshot.Request, onProgress)
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		w.finishCanceled(taskID)
	case err != nil:
		w.finishFailed(taskID, taskErrorFrom(err))
	default:
		w.finishCompleted(taskID, result)
	}
}

// acquireSlot blocks until a download slot frees, observing cancellation
// while the task is still pending. Returns false if the task was
// canceled (or vanished) before a slot was acquired.
func (w *DownloadWorker) acquireSlot(taskID string) bool {
	for {
		select {
		case w.slots <- struct{}{}:
			return true
		case <-time.After(w.pollInterval):
			snapshot, err := w.store.Get(taskID)
			if err != nil {
				log.Printf("Task %s disappeared while pending: %v", taskID, err)
				return false
			}
			if snapshot.CancelRequested {
				w.finishCanceled(taskID)
				return false
			}
		}
	}
}

// watchCancel polls the cancel flag while the fetch runs and fires the
// context so the engine stops within one poll interval.
func (w *DownloadWorker) watchCancel(taskID string, cancel context.CancelFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snapshot, err := w.store.Get(taskID)
			if err != nil || snapshot.Status.IsTerminal() {
				return
			}
			if snapshot.CancelRequested {
				cancel()
				return
			}
		}
	}
}

func (w *DownloadWorker) finishCompleted(taskID string, result *client.FetchResult) {
	var payload *model.DownloadResult
	err := w.store.Mutate(taskID, func(t *model.Task) error {
		t.Status = model.TaskStatusCompleted
		t.Progress = 100
		t.Stage = "finished"
		t.Result = &model.DownloadResult{
			FilePath: result.FilePath,
			FileSize: result.FileSize,
			Metadata: result.Metadata,
		}
		t.Warning = result.Warning
		payload = t.Result
		return nil
	})
	if err != nil {
		log.Printf("Task %s completed but could not be recorded: %v", taskID, err)
		return
	}
	if w.hub != nil {
		w.hub.BroadcastComplete(taskID, payload)
	}
}

func (w *DownloadWorker) finishFailed(taskID string, taskErr model.TaskError) {
	err := w.store.Mutate(taskID, func(t *model.Task) error {
		t.Status = model.TaskStatusFailed
		t.Error = &taskErr
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			log.Printf("Task %s failed but could not be recorded: %v", taskID, err)
		}
		return
	}
	log.Printf("Task %s failed: %s: %s", taskID, taskErr.Kind, taskErr.Message)
	if w.hub != nil {
		w.hub.BroadcastError(taskID, taskErr)
	}
}

func (w *DownloadWorker) finishCanceled(taskID string) {
	err := w.store.Mutate(taskID, func(t *model.Task) error {
		t.Status = model.TaskStatusCanceled
		t.Stage = "canceled"
		return nil
	})
	if err != nil {
		// Already terminal means the task raced to completed or failed;
		// it is not canceled, so nothing may be broadcast for it.
		if !errors.Is(err, store.ErrInvalidTransition) {
			log.Printf("Task %s canceled but could not be recorded: %v", taskID, err)
		}
		return
	}
	if w.hub != nil {
		w.hub.BroadcastProgress(taskID, model.TaskStatusCanceled, 0, "canceled")
	}
}

func taskErrorFrom(err error) model.TaskError {
	var dlErr *client.DownloadError
	if errors.As(err, &dlErr) {
		return model.TaskError{Kind: dlErr.Kind, Message: dlErr.Message}
	}
	return model.TaskError{Kind: client.ErrorKindEngine, Message: err.Error()}
}
