package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// RenderFailure records a view that failed to render during a batch run.
type RenderFailure struct {
	Collection string
	Path       string
	Err        error
	Timestamp  time.Time
}

// Error implements the error interface
func (rf *RenderFailure) Error() string {
	return fmt.Sprintf("%s:%s: %v", rf.Collection, rf.Path, rf.Err)
}

// Unwrap returns the render error.
func (rf *RenderFailure) Unwrap() error {
	return rf.Err
}

// ErrorCollector collects render failures when a batch keeps going past
// individual view errors.
type ErrorCollector struct {
	failures []RenderFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]RenderFailure, 0),
	}
}

// Add records a failure for the given view. Nil errors are ignored.
func (ec *ErrorCollector) Add(collection, path string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = append(ec.failures, RenderFailure{
		Collection: collection,
		Path:       path,
		Err:        err,
		Timestamp:  time.Now(),
	})
}

// Failures returns a copy of the collected failures
func (ec *ErrorCollector) Failures() []RenderFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]RenderFailure, len(ec.failures))
	copy(result, ec.failures)
	return result
}

// HasErrors returns true if there are any failures
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Clear clears all failures
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
}

// Err folds the collected failures into a single error, or nil.
func (ec *ErrorCollector) Err() error {
	failures := ec.Failures()
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return &failures[0]
	}

	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Path < failures[j].Path
	})
	lines := make([]string, 0, len(failures))
	for i := range failures {
		lines = append(lines, "  "+failures[i].Error())
	}
	return fmt.Errorf("%d views failed to render:\n%s", len(failures), strings.Join(lines, "\n"))
}
