package ghostrouter

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal state of dispatching one row change.
type Outcome int

const (
	OutcomeDispatched Outcome = iota
	OutcomeUnmatched
	OutcomeForbidden
	OutcomeFiltered
	OutcomeFailed

	numOutcomes
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Ignored reports outcomes where the action was never called.
func (o Outcome) Ignored() bool {
	return o == OutcomeUnmatched || o == OutcomeForbidden || o == OutcomeFiltered
}

type DispatchStats struct {
	Dispatched uint64
	Unmatched  uint64
	Forbidden  uint64
	Filtered   uint64
	Failed     uint64
}

// Dispatcher routes row changes to the action bound to their table. It is
// safe for concurrent use and holds no per-event state.
type Dispatcher struct {
	Routes *RouteTable

	counters   [numOutcomes]atomic.Uint64
	logger     *logrus.Entry
	loggerOnce sync.Once
}

func NewDispatcher(routes *RouteTable) *Dispatcher {
	return &Dispatcher{Routes: routes}
}

func (d *Dispatcher) ensureLogger() {
	d.loggerOnce.Do(func() {
		d.logger = logrus.WithField("tag", "dispatcher")
	})
}

// Dispatch resolves the binding of change, applies the event type mask,
// the column allow-list and the condition, then invokes the action. Event
// types other than Insert, Update and Delete are always forbidden. Only a
// failing action produces an error, an *ActionError.
func (d *Dispatcher) Dispatch(change *RowChange) (Outcome, error) {
	d.ensureLogger()

	index, err := d.Routes.Index()
	if err != nil {
		return OutcomeFailed, err
	}

	table, found := index.Resolve(change.Schema, change.Table)
	if !found {
		return d.record(change, OutcomeUnmatched), nil
	}

	if !change.Type.Valid() || table.Forbids(change.Type) {
		return d.record(change, OutcomeForbidden), nil
	}

	row := table.project(change.Row())

	if !table.accepts(row) {
		return d.record(change, OutcomeFiltered), nil
	}

	if err := table.action.invoke(change.Type, row); err != nil {
		d.record(change, OutcomeFailed)
		d.logger.WithError(err).WithFields(logrus.Fields{
			"schema": change.Schema,
			"table":  change.Table,
			"type":   change.Type.String(),
		}).Error("action failed")

		return OutcomeFailed, &ActionError{
			Schema: change.Schema,
			Table:  change.Table,
			Type:   change.Type,
			Err:    err,
		}
	}

	return d.record(change, OutcomeDispatched), nil
}

// DispatchAll dispatches changes in order and stops at the first error.
func (d *Dispatcher) DispatchAll(changes []*RowChange) error {
	for _, change := range changes {
		if _, err := d.Dispatch(change); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether a table has a binding, so a transport can skip
// decoding rows of unbound tables. It counts nothing; transports report what
// they skipped through Skipped.
func (d *Dispatcher) Matches(schemaName, tableName string) bool {
	index, err := d.Routes.Index()
	if err != nil {
		return false
	}

	_, found := index.Resolve(schemaName, tableName)
	return found
}

// Skipped counts rows row changes of an unbound table as unmatched.
func (d *Dispatcher) Skipped(schemaName, tableName string, rows int) {
	if rows <= 0 {
		return
	}

	d.counters[OutcomeUnmatched].Add(uint64(rows))
	metrics.Count("Dispatch.unmatched", int64(rows), []MetricTag{
		{"schema", schemaName},
		{"table", tableName},
	}, 1.0)
}

func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Dispatched: d.counters[OutcomeDispatched].Load(),
		Unmatched:  d.counters[OutcomeUnmatched].Load(),
		Forbidden:  d.counters[OutcomeForbidden].Load(),
		Filtered:   d.counters[OutcomeFiltered].Load(),
		Failed:     d.counters[OutcomeFailed].Load(),
	}
}

func (d *Dispatcher) record(change *RowChange, outcome Outcome) Outcome {
	d.counters[outcome].Add(1)

	metrics.Count("Dispatch."+outcome.String(), 1, []MetricTag{
		{"schema", change.Schema},
		{"table", change.Table},
	}, 1.0)

	if outcome.Ignored() && d.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		d.logger.WithFields(logrus.Fields{
			"schema":  change.Schema,
			"table":   change.Table,
			"type":    change.Type.String(),
			"outcome": outcome.String(),
		}).Debug("ignored row change")
	}

	return outcome
}
