package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

// TaskStore keeps the live state of publishing runs in memory.
// Nothing is persisted; the store is empty after a restart.
type TaskStore struct {
	tasks map[string]*models.ImageTask
	mu    sync.RWMutex
	now   func() time.Time
}

func New() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*models.ImageTask),
		now:   time.Now,
	}
}

// Track registers a pending run and returns its id
func (s *TaskStore) Track(filename, siteID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := uuid.NewString()
	s.tasks[id] = &models.ImageTask{
		ID:        id,
		Filename:  filename,
		SiteID:    siteID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Update moves a task to the status carried by update.
// Finished tasks never change; it reports whether the update was applied.
func (s *TaskStore) Update(id string, update models.TaskUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return false
	}
	task.Status = update.Status
	task.Error = update.Error
	task.UpdatedAt = s.now()
	return true
}

// Complete records the published URL of a task. Failed tasks are left alone.
func (s *TaskStore) Complete(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status == models.StatusError {
		return
	}
	task.URL = url
	if !task.Status.IsTerminal() {
		task.Status = models.StatusCompleted
	}
	task.UpdatedAt = s.now()
}

// Fail marks a task as errored unless it already finished
func (s *TaskStore) Fail(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return
	}
	task.Status = models.StatusError
	task.Error = message
	task.UpdatedAt = s.now()
}

// Get returns a copy of the task
func (s *TaskStore) Get(id string) (models.ImageTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	if !exists {
		return models.ImageTask{}, false
	}
	return *task, true
}

// List returns copies of all tasks, oldest first
func (s *TaskStore) List() []models.ImageTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ImageTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		result = append(result, *task)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
