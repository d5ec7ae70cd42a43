package narcache

import (
	"fmt"
	"sync"
)

// ItemError records one failed item of a batch operation.
type ItemError struct {
	Name string
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

// Report aggregates per-item outcomes of a batch operation. Items that
// fail are enumerated rather than aborting the batch.
type Report struct {
	mu        sync.Mutex
	Succeeded int
	Skipped   int
	Failed    []ItemError
}

func (r *Report) success() {
	r.mu.Lock()
	r.Succeeded++
	r.mu.Unlock()
}

func (r *Report) skip() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *Report) fail(name string, err error) {
	r.mu.Lock()
	r.Failed = append(r.Failed, ItemError{Name: name, Err: err})
	r.mu.Unlock()
}

// Err returns nil when no item failed, otherwise a summary error.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d items failed (first: %v)",
		len(r.Failed), r.Succeeded+r.Skipped+len(r.Failed), r.Failed[0])
}

func (r *Report) String() string {
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed",
		r.Succeeded, r.Skipped, len(r.Failed))
}
