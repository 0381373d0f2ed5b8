package ghostrouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetriesStopsOnSuccess(t *testing.T) {
	attempts := 0
	err := WithRetries(5, 0, nil, "do it", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.Nil(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetriesGivesUp(t *testing.T) {
	attempts := 0
	err := WithRetries(2, 0, nil, "do it", func() error {
		attempts++
		return errors.New("never")
	})

	assert.EqualError(t, err, "never")
	assert.Equal(t, 2, attempts)
}

func TestWithRetriesContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithRetriesContext(ctx, 5, 0, nil, "do it", func() error {
		called = true
		return nil
	})

	assert.Equal(t, context.Canceled, err)
	assert.False(t, called)
}

func TestWithRetriesContextStopsSleepingOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	err := WithRetriesContext(ctx, 0, time.Hour, nil, "do it", func() error {
		attempts++
		return errors.New("failing")
	})

	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestAtomicBoolean(t *testing.T) {
	var b AtomicBoolean
	assert.False(t, b.Get())
	b.Set(true)
	assert.True(t, b.Get())
	b.Set(false)
	assert.False(t, b.Get())
}

func TestWaitForThrottleReturnsOnceUnpaused(t *testing.T) {
	throttler := &PauserThrottler{}
	WaitForThrottle(nil)
	WaitForThrottle(throttler)

	throttler.SetPaused(true)
	done := make(chan struct{})
	go func() {
		WaitForThrottle(throttler)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("returned while paused")
	case <-time.After(100 * time.Millisecond):
	}

	throttler.SetPaused(false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("still waiting after unpause")
	}
}
