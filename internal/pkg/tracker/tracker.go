package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"
)

type runState struct {
	processed int
	seen      map[string]struct{}
}

// Tracker counts processed jobs per dispatch run in process memory.
// An increment is idempotent per (jobID, rowID), the run entry is created
// lazily on the first job and dropped when the count reaches total.
// Use the postgres-backed implementation when worker pools span processes
type Tracker struct {
	lock sync.Mutex
	runs map[string]*runState
}

// New creates in-memory run tracker
func New() *Tracker {
	return &Tracker{runs: map[string]*runState{}}
}

// MarkProcessed registers one processed job of a run.
// Returns true for exactly one job of a run - the one bringing the count to total
func (t *Tracker) MarkProcessed(ctx context.Context, jobID, rowID string, total int) (bool, error) {
	if total < 1 {
		return false, fmt.Errorf("wrong total %d", total)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	rs, ok := t.runs[jobID]
	if !ok {
		rs = &runState{seen: map[string]struct{}{}}
		t.runs[jobID] = rs
	}
	if _, ok := rs.seen[rowID]; ok {
		goapp.Log.Warn().Str("jobID", jobID).Str("rowID", rowID).Msg("duplicate delivery, skip count")
		return false, nil
	}
	rs.seen[rowID] = struct{}{}
	rs.processed++
	if rs.processed >= total {
		delete(t.runs, jobID)
		return true, nil
	}
	return false, nil
}

// Active returns the count of runs currently tracked
func (t *Tracker) Active() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.runs)
}
