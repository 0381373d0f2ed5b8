package testhelpers

import "sync"

type ErrorHandler struct {
	LastError error
	LastFrom  string

	mu sync.Mutex
}

func (this *ErrorHandler) Fatal(from string, err error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	this.LastError = err
	this.LastFrom = from
}

func (this *ErrorHandler) Err() error {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.LastError
}
