package job

import (
	"errors"
	"sync"
	"testing"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore()

	created := s.Create("Hello", "default")
	if created.ID == "" {
		t.Fatal("expected non-empty id")
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "Hello" || got.Status != StatusQueued {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore()

	_, err := s.Get("no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore()
	created := s.Create("Hello", "default")

	got, _ := s.Get(created.ID)
	got.Status = StatusFailed

	again, _ := s.Get(created.ID)
	if again.Status != StatusQueued {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore()
	created := s.Create("Hello", "default")

	s.Update(created.ID, func(j *Job) {
		j.Advance(StatusProcessing, 10)
	})

	got, _ := s.Get(created.ID)
	if got.Status != StatusProcessing || got.Progress != 10 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestStoreUpdateAfterDelete(t *testing.T) {
	s := NewStore()
	created := s.Create("Hello", "default")
	s.Delete(created.ID)

	// Must be a silent no-op, not a recreate or panic.
	s.Update(created.ID, func(j *Job) {
		j.Fail("ghost write")
	})

	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d jobs", s.Len())
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	created := s.Create("Hello", "default")

	s.Delete(created.ID)
	s.Delete(created.ID) // idempotent

	if _, err := s.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreForEach(t *testing.T) {
	s := NewStore()
	s.Create("one", "default")
	s.Create("two", "default")
	s.Create("three", "default")

	count := 0
	s.ForEach(func(j Job) {
		count++
	})

	if count != 3 {
		t.Errorf("expected 3 jobs, got %d", count)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	ids := make(chan string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created := s.Create("concurrent", "default")
			ids <- created.ID
			s.Update(created.ID, func(j *Job) {
				j.Advance(StatusProcessing, 10)
			})
			if _, err := s.Get(created.ID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = true
	}

	if s.Len() != 50 {
		t.Errorf("expected 50 jobs, got %d", s.Len())
	}
}
