package ghostrouter

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IndexLoader builds a complete Index, typically from configuration.
type IndexLoader func() (Index, error)

// Generation identifies one installed Index.
type Generation struct {
	ID          string
	InstalledAt time.Time
}

type installedIndex struct {
	index      Index
	generation Generation
}

// RouteTable holds the live Index. It starts uninitialized and loads from
// Loader on first use. Reload builds a new Index off to the side and swaps
// it in with a single pointer store, so readers see either the old or the
// new Index and never a partial one.
type RouteTable struct {
	Loader IndexLoader

	current atomic.Pointer[installedIndex]
	mu      sync.Mutex
	logger  *logrus.Entry
}

func NewRouteTable(index Index) *RouteTable {
	r := &RouteTable{}
	r.Swap(index)
	return r
}

func (r *RouteTable) ensureLogger() {
	if r.logger == nil {
		r.logger = logrus.WithField("tag", "route_table")
	}
}

func (r *RouteTable) Initialized() bool {
	return r.current.Load() != nil
}

// Index returns the live Index, loading it on first use.
func (r *RouteTable) Index() (Index, error) {
	if installed := r.current.Load(); installed != nil {
		return installed.index, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if installed := r.current.Load(); installed != nil {
		return installed.index, nil
	}

	index, err := r.load()
	if err != nil {
		return nil, err
	}
	r.install(index)
	return index, nil
}

// Reload replaces the live Index with a freshly loaded one. When loading
// fails the live Index is kept and the error returned.
func (r *RouteTable) Reload() (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.load()
	if err != nil {
		r.ensureLogger()
		r.logger.WithError(err).Error("failed to reload routes, keeping the current ones")
		return nil, err
	}
	r.install(index)
	return index, nil
}

// Swap installs index and returns the one it replaced, nil if none.
func (r *RouteTable) Swap(index Index) Index {
	if index == nil {
		panic("ghostrouter: cannot install a nil index")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load()
	r.install(index)
	if previous == nil {
		return nil
	}
	return previous.index
}

func (r *RouteTable) Generation() (Generation, bool) {
	installed := r.current.Load()
	if installed == nil {
		return Generation{}, false
	}
	return installed.generation, true
}

func (r *RouteTable) load() (Index, error) {
	if r.Loader == nil {
		return nil, errors.New("route table has no loader")
	}

	index, err := r.Loader()
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, errors.New("route table loader returned no index")
	}
	return index, nil
}

func (r *RouteTable) install(index Index) {
	r.ensureLogger()

	generation := Generation{
		ID:          uuid.NewString(),
		InstalledAt: time.Now(),
	}
	r.current.Store(&installedIndex{index: index, generation: generation})

	r.logger.WithFields(logrus.Fields{
		"generation": generation.ID,
		"schemas":    index.Len(),
	}).Info("installed routes")
}
