// File: internal/server/store.go
package server

import (
	"sync"
	"time"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// RunStatus is the lifecycle position of a run submitted over HTTP.
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	// RunFailed means no result exists: the run could not be set up or its
	// browser could not be started.
	RunFailed RunStatus = "failed"
)

// RunRecord is the externally visible state of a run.
type RunRecord struct {
	ID         string                  `json:"run_id"`
	Goal       string                  `json:"goal"`
	Status     RunStatus               `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Result     *schemas.AgentRunResult `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// RunStore tracks runs in memory. Once more than retain runs have finished,
// the oldest finished ones are evicted and onEvict is called for each.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]*RunRecord
	order   []string
	retain  int
	onEvict func(id string)
	now     func() time.Time
}

// NewRunStore creates a store keeping at most retain finished runs.
func NewRunStore(retain int, onEvict func(id string)) *RunStore {
	if retain <= 0 {
		retain = 100
	}
	if onEvict == nil {
		onEvict = func(string) {}
	}
	return &RunStore{
		runs:    make(map[string]*RunRecord),
		retain:  retain,
		onEvict: onEvict,
		now:     time.Now,
	}
}

// Add registers a queued run.
func (s *RunStore) Add(id, goal string) RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &RunRecord{ID: id, Goal: goal, Status: RunQueued, CreatedAt: s.now()}
	s.runs[id] = rec
	s.order = append(s.order, id)
	return *rec
}

// Get returns a copy of the run's record.
func (s *RunStore) Get(id string) (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// MarkRunning records that the run acquired a slot.
func (s *RunStore) MarkRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[id]; ok {
		now := s.now()
		rec.Status = RunRunning
		rec.StartedAt = &now
	}
}

// Finish stores the outcome. A nil result marks the run failed.
func (s *RunStore) Finish(id string, result *schemas.AgentRunResult, err error) RunRecord {
	s.mu.Lock()
	rec, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return RunRecord{}
	}
	now := s.now()
	rec.FinishedAt = &now
	rec.Result = result
	if err != nil {
		rec.Error = err.Error()
	}
	rec.Status = RunFinished
	if result == nil {
		rec.Status = RunFailed
	}
	out := *rec
	evicted := s.evictLocked()
	s.mu.Unlock()

	for _, e := range evicted {
		s.onEvict(e)
	}
	return out
}

// evictLocked drops the oldest finished runs beyond the retention limit.
func (s *RunStore) evictLocked() []string {
	finished := 0
	for _, id := range s.order {
		if isDone(s.runs[id].Status) {
			finished++
		}
	}
	var evicted []string
	kept := s.order[:0]
	for _, id := range s.order {
		if finished > s.retain && isDone(s.runs[id].Status) {
			delete(s.runs, id)
			evicted = append(evicted, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted
}

func isDone(status RunStatus) bool {
	return status == RunFinished || status == RunFailed
}
