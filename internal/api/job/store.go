// internal/api/job/store.go
package job

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/tradecost/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Failure is the error recorded on a failed job.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Job is an asynchronous heatmap run.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    Status    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     *Failure  `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps recent jobs in memory. Jobs older than ttl are dropped on the
// next Create, and the oldest job is evicted once maxSize is reached.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a new job store. A ttl of 0 keeps jobs until evicted by size.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a pending job and returns a copy of it.
func (s *Store) Create(kind string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)

	for len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	j := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)

	return *j
}

// expire drops jobs created before now-ttl. Callers hold the write lock.
func (s *Store) expire(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	cutoff := now.Add(-s.ttl)
	keep := s.order[:0]
	for _, id := range s.order {
		if s.jobs[id].CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
}

// Get returns a copy of the job, or ErrNotFound.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, core.Errorf(core.ErrNotFound, "job %s", id)
	}
	return *j, nil
}

// Update modifies a job in place.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Errorf(core.ErrNotFound, "job %s", id)
	}
	fn(j)
	j.UpdatedAt = s.now()
	return nil
}

// Start marks a job running.
func (s *Store) Start(id string) error {
	return s.Update(id, func(j *Job) { j.Status = StatusRunning })
}

// Complete stores the job's result.
func (s *Store) Complete(id string, result any) error {
	return s.Update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Result = result
	})
}

// Fail records err on the job.
func (s *Store) Fail(id string, err error) error {
	return s.Update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = failureOf(err)
	})
}

// List returns all jobs, oldest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

func failureOf(err error) *Failure {
	var ce *core.Error
	if !errors.As(err, &ce) {
		return &Failure{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
	f := &Failure{Code: ce.Code, Message: ce.Message}
	if ce.Cause != nil {
		f.Cause = ce.Cause.Error()
	}
	return f
}
