package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universalmedia/api/internal/model"
)

func newTask(id string) *model.Task {
	now := time.Now().UTC()
	return &model.Task{
		ID:     id,
		Status: model.TaskStatusPending,
		Request: model.DownloadRequest{
			URL:       "https://example.com/v/" + id,
			MediaType: model.MediaTypeVideo,
			Quality:   "best",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestInsertDuplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))
	assert.ErrorIs(t, s.Insert(newTask("a")), ErrDuplicateID)
}

func TestGetUnknown(t *testing.T) {
	s := New()
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	got, err := s.Get("a")
	require.NoError(t, err)
	got.Status = model.TaskStatusFailed

	again, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, again.Status, "mutating a snapshot must not touch the store")
}

func TestMutateUpdatesRecord(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	err := s.Mutate("a", func(task *model.Task) error {
		task.Status = model.TaskStatusDownloading
		task.Progress = 42
		task.Stage = "downloading"
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDownloading, got.Status)
	assert.Equal(t, 42.0, got.Progress)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestMutateUnknown(t *testing.T) {
	s := New()
	err := s.Mutate("missing", func(task *model.Task) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutateTerminalRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))
	require.NoError(t, s.Mutate("a", func(task *model.Task) error {
		task.Status = model.TaskStatusCompleted
		task.Result = &model.DownloadResult{FilePath: "/tmp/a.mp4", FileSize: 10}
		return nil
	}))

	err := s.Mutate("a", func(task *model.Task) error {
		task.Status = model.TaskStatusFailed
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "/tmp/a.mp4", got.Result.FilePath)
}

func TestMutateSetsCompletedAtOnTerminal(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))
	require.NoError(t, s.Mutate("a", func(task *model.Task) error {
		task.Status = model.TaskStatusCanceled
		return nil
	}))

	got, err := s.Get("a")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
}

func TestMutateErrorLeavesRecordUntouched(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	wantErr := assert.AnError
	err := s.Mutate("a", func(task *model.Task) error {
		task.Status = model.TaskStatusFailed
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestListOrderAndFilter(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))
	require.NoError(t, s.Insert(newTask("b")))
	require.NoError(t, s.Insert(newTask("c")))
	require.NoError(t, s.Mutate("b", func(task *model.Task) error {
		task.Status = model.TaskStatusDownloading
		return nil
	}))

	all := s.List("")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	downloading := s.List(model.TaskStatusDownloading)
	require.Len(t, downloading, 1)
	assert.Equal(t, "b", downloading[0].ID)

	assert.Empty(t, s.List(model.TaskStatusFailed))
}

func TestWatchWakesOnChange(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	ch := s.Watch()
	go func() {
		_ = s.Mutate("a", func(task *model.Task) error {
			task.Progress = 10
			return nil
		})
	}()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel never closed after a mutation")
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(newTask("a")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Mutate("a", func(task *model.Task) error {
				task.Progress++
				return nil
			})
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Get("a")
			_ = s.List("")
		}()
	}
	wg.Wait()

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Progress, "every increment must be applied exactly once")
}
