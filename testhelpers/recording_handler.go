package testhelpers

import (
	"sync"

	"github.com/Shopify/ghostrouter"
)

type Call struct {
	Type ghostrouter.EventType
	Row  ghostrouter.Row
}

// Recorder keeps every call made to the handlers built from it. When Err is
// set the first FailTimes calls return it, or every call if FailTimes is 0.
type Recorder struct {
	Err       error
	FailTimes int

	mu       sync.Mutex
	calls    []Call
	attempts int
}

func (r *Recorder) record(eventType ghostrouter.EventType, row ghostrouter.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.Err != nil && (r.FailTimes == 0 || r.attempts <= r.FailTimes) {
		return r.Err
	}

	r.calls = append(r.calls, Call{Type: eventType, Row: row})
	return nil
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Recorder) Rows() []ghostrouter.Row {
	calls := r.Calls()
	rows := make([]ghostrouter.Row, len(calls))
	for i, call := range calls {
		rows[i] = call.Row
	}
	return rows
}

// RowHandler only sees rows. Calls made through it record Insert as type.
func (r *Recorder) RowHandler() ghostrouter.RowHandler {
	return ghostrouter.RowHandlerFunc(func(row ghostrouter.Row) error {
		return r.record(ghostrouter.Insert, row)
	})
}

func (r *Recorder) EventTypeHandler() ghostrouter.EventTypeHandler {
	return ghostrouter.EventTypeHandlerFunc(func(eventType ghostrouter.EventType, row ghostrouter.Row) error {
		return r.record(eventType, row)
	})
}
