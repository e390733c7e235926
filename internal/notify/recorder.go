package notify

import (
	"context"
	"sync"
)

// Record is one captured notification.
type Record struct {
	Success bool
	Notice  Notice
	Reason  string
}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) NotifySuccess(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Success: true, Notice: n})
}

func (r *Recorder) NotifyFailure(_ context.Context, n Notice, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Notice: n, Reason: reason})
}

// Records returns a copy of everything captured so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}
