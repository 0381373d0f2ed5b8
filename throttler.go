package ghostrouter

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Throttler holds back dispatching while Throttled returns true.
type Throttler interface {
	Throttled() bool
	SetPaused(bool)
}

// WaitForThrottle blocks until t no longer throttles. A nil Throttler never
// throttles.
func WaitForThrottle(t Throttler) {
	if t == nil {
		return
	}

	for t.Throttled() {
		time.Sleep(500 * time.Millisecond)
	}
}

// PauserThrottler throttles only while paused through the control server.
type PauserThrottler struct {
	paused AtomicBoolean
}

func (t *PauserThrottler) Throttled() bool {
	return t.paused.Get()
}

func (t *PauserThrottler) SetPaused(paused bool) {
	t.paused.Set(paused)
	logrus.WithField("tag", "throttler").WithField("paused", paused).Info("dispatching pause state changed")
}
