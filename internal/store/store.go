package store

import (
	"errors"
	"sync"
	"time"

	"github.com/universalmedia/api/internal/model"
)

var (
	// ErrNotFound means no task exists for the given id
	ErrNotFound = errors.New("task not found")

	// ErrDuplicateID means an insert collided with an existing id.
	// Ids come from uuid generation, so this indicates a bug.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrInvalidTransition means a mutation targeted a terminal task
	ErrInvalidTransition = errors.New("task already in terminal state")
)

// Store is the in-memory task registry and the single source of truth
// for task state. All reads return copies; mutations go through Mutate
// so the state-machine guard and the change notification cannot be
// bypassed. Lifetime is the process lifetime.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]*model.Task
	order   []string
	changed chan struct{}
}

// New creates an empty store
func New() *Store {
	return &Store{
		tasks:   make(map[string]*model.Task),
		changed: make(chan struct{}),
	}
}

// Insert registers a new task under its id
func (s *Store) Insert(t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return ErrDuplicateID
	}
	s.tasks[t.ID] = t.Clone()
	s.order = append(s.order, t.ID)
	s.notifyLocked()
	return nil
}

// Get returns a snapshot of the task with the given id
func (s *Store) Get(id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Mutate applies fn to the task under exclusive access. Any mutation
// against a task already in a terminal state is rejected with
// ErrInvalidTransition; callers that may legitimately race a terminal
// transition (progress updates against a just-canceled task) drop that
// error. UpdatedAt is refreshed on every applied mutation.
func (s *Store) Mutate(id string, fn func(t *model.Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if current.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	// Work on a copy so a failed fn leaves the record untouched.
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	if next.Status.IsTerminal() && next.CompletedAt == nil {
		ts := next.UpdatedAt
		next.CompletedAt = &ts
	}
	s.tasks[id] = next
	s.notifyLocked()
	return nil
}

// List returns snapshots in insertion order, optionally filtered by
// status. An empty filter matches everything.
func (s *Store) List(filter model.TaskStatus) []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Task, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		if filter != "" && t.Status != filter {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// Watch returns a channel that is closed on the next state change.
// Callers grab the channel, re-check their condition, then block on it;
// that ordering cannot miss an update.
func (s *Store) Watch() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

func (s *Store) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
