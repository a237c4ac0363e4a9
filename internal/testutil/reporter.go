package testutil

import "sync"

// RecordingReporter keeps every breadcrumb and exception it receives.
type RecordingReporter struct {
	mu         sync.Mutex
	Logs       []string
	Exceptions []error
}

func (r *RecordingReporter) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, msg)
}

func (r *RecordingReporter) RecordException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Exceptions = append(r.Exceptions, err)
}

// ExceptionCount returns the number of recorded exceptions.
func (r *RecordingReporter) ExceptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Exceptions)
}
