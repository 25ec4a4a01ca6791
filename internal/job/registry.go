package job

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry is the in-memory store of job records. A single mutex guards every
// access and all results are deep copies, so callers never share state with
// the stored records. Records are never evicted.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
	seq  uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Insert stores a new job. The job must be queued.
func (r *Registry) Insert(j Job) error {
	if j.Status != StatusQueued {
		return fmt.Errorf("%w: new job must be %s, got %s", ErrInvalidTransition, StatusQueued, j.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[j.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, j.ID)
	}
	r.seq++
	c := j.clone()
	c.seq = r.seq
	r.jobs[j.ID] = &c
	return nil
}

// Get returns a copy of the job with id.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return j.clone(), nil
}

// List returns copies of all jobs, most recently created first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].seq > out[b].seq
	})
	return out
}

// Update applies fn to a copy of the job and stores the result if it is a
// legal change: the status stays or advances one lifecycle step, terminal jobs
// are frozen, and identity fields plus RunPath, LogFile, RunID, StartedAt and
// CompletedAt are write-once. fn returning an error aborts the update.
func (r *Registry) Update(id string, fn func(*Job) error) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}

	next := current.clone()
	if err := fn(&next); err != nil {
		return Job{}, err
	}
	if err := checkUpdate(*current, next); err != nil {
		return Job{}, err
	}

	next.seq = current.seq
	r.jobs[id] = &next
	return next.clone(), nil
}

func checkUpdate(prev, next Job) error {
	if prev.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, prev.ID, prev.Status)
	}
	if next.Status != prev.Status && !prev.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}

	if next.ID != prev.ID ||
		next.ConfigPath != prev.ConfigPath ||
		next.OutputDir != prev.OutputDir ||
		next.LLM != prev.LLM ||
		!next.CreatedAt.Equal(prev.CreatedAt) ||
		!reflect.DeepEqual(next.Overrides, prev.Overrides) {
		return fmt.Errorf("%w: immutable field changed on job %s", ErrInvalidTransition, prev.ID)
	}

	for name, pair := range map[string][2]string{
		"run_id":   {prev.RunID, next.RunID},
		"run_path": {prev.RunPath, next.RunPath},
		"log_file": {prev.LogFile, next.LogFile},
	} {
		if pair[0] != "" && pair[0] != pair[1] {
			return fmt.Errorf("%w: %s already set on job %s", ErrInvalidTransition, name, prev.ID)
		}
	}
	if prev.StartedAt != nil && (next.StartedAt == nil || !next.StartedAt.Equal(*prev.StartedAt)) {
		return fmt.Errorf("%w: started_at already set on job %s", ErrInvalidTransition, prev.ID)
	}

	if next.Status.Terminal() && next.CompletedAt == nil {
		return fmt.Errorf("%w: terminal job %s needs completed_at", ErrInvalidTransition, prev.ID)
	}
	if next.Status == StatusRunning && next.StartedAt == nil {
		return fmt.Errorf("%w: running job %s needs started_at", ErrInvalidTransition, prev.ID)
	}
	if (next.Error != "" || next.Failure != nil) && next.Status != StatusFailed {
		return fmt.Errorf("%w: error set on job %s that is not failed", ErrInvalidTransition, prev.ID)
	}
	return nil
}
