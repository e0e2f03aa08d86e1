package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRuns(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})
	s.Schedule(TaskKey{"r", "p"}, 10*time.Millisecond, func() { close(done) })

	if _, ok := s.Pending(TaskKey{"r", "p"}); !ok {
		t.Error("task should be pending")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	time.Sleep(5 * time.Millisecond)
	if s.Len() != 0 {
		t.Errorf("Len = %d after run", s.Len())
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	var ran atomic.Bool
	key := TaskKey{"r", "p"}
	s.Schedule(key, 20*time.Millisecond, func() { ran.Store(true) })
	if !s.Cancel(key) {
		t.Fatal("Cancel should report a pending task")
	}
	if s.Cancel(key) {
		t.Error("second Cancel should report nothing")
	}
	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task ran")
	}
}

func TestSchedulerReplace(t *testing.T) {
	s := NewScheduler()
	var first, second atomic.Int32
	key := TaskKey{"r", "p"}
	s.Schedule(key, 20*time.Millisecond, func() { first.Add(1) })
	s.Schedule(key, 20*time.Millisecond, func() { second.Add(1) })
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	time.Sleep(80 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}
}

func TestSchedulerCancelRoom(t *testing.T) {
	s := NewScheduler()
	var ran atomic.Int32
	fn := func() { ran.Add(1) }
	s.Schedule(TaskKey{"r1", "a"}, 20*time.Millisecond, fn)
	s.Schedule(TaskKey{"r1", "b"}, 20*time.Millisecond, fn)
	s.Schedule(TaskKey{"r2", "a"}, 20*time.Millisecond, fn)

	if n := s.CancelRoom("r1"); n != 2 {
		t.Errorf("CancelRoom = %d, want 2", n)
	}
	time.Sleep(80 * time.Millisecond)
	if ran.Load() != 1 {
		t.Errorf("ran = %d, want 1", ran.Load())
	}
}
