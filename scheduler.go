package main

import (
	"sync"
	"time"
)

// TaskKey identifies a deferred per-player task within a room.
type TaskKey struct {
	RoomID   string
	PlayerID string
}

type scheduledTask struct {
	due   time.Time
	timer *time.Timer
}

// Scheduler runs one-shot callbacks after a delay. At most one task exists
// per key; scheduling again replaces the previous task.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[TaskKey]*scheduledTask
}

// NewScheduler creates an empty Scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[TaskKey]*scheduledTask)}
}

// Schedule runs fn after delay unless the task is cancelled or replaced first.
// fn runs on its own goroutine without the scheduler lock held.
func (s *Scheduler) Schedule(key TaskKey, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}
	task := &scheduledTask{due: time.Now().Add(delay)}
	task.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.tasks[key]
		if !ok || cur != task {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()
		fn()
	})
	s.tasks[key] = task
}

// Cancel drops the task for key. Returns false if none was pending.
func (s *Scheduler) Cancel(key TaskKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// CancelRoom drops every task belonging to roomID and returns how many.
func (s *Scheduler) CancelRoom(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, task := range s.tasks {
		if key.RoomID != roomID {
			continue
		}
		task.timer.Stop()
		delete(s.tasks, key)
		n++
	}
	return n
}

// Pending returns the due time of the task for key
func (s *Scheduler) Pending(key TaskKey) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return time.Time{}, false
	}
	return task.due, true
}

// Len returns the number of pending tasks
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
