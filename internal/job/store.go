package job

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a job id is unknown or already expired.
var ErrNotFound = errors.New("job not found")

// Store is a concurrency-safe in-memory job map. It is constructed once at
// startup and injected into every component that needs it; there is no
// package-level state.
//
// Mutations go through Update so the store's lock covers the read-modify-write.
// Reads return copies: callers never share memory with the stored record.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
	}
}

// Create inserts a new queued job and returns a snapshot of it.
func (s *Store) Create(text, voice string) Job {
	j := New(text, voice)

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	return *j
}

// Get returns a point-in-time copy of the job, or ErrNotFound.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// Update applies fn to the job under the store lock. Updating a deleted or
// unknown id is a no-op, which makes late writers after expiry harmless.
func (s *Store) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// Delete removes the job. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// ForEach calls fn with a copy of every job. Used by the janitor sweep.
func (s *Store) ForEach(fn func(Job)) {
	s.mu.RLock()
	snapshot := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		snapshot = append(snapshot, *j)
	}
	s.mu.RUnlock()

	for _, j := range snapshot {
		fn(j)
	}
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
