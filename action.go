package ghostrouter

import "fmt"

// ActionKind tells which of the two handler contracts an Action uses. A
// schema declares one kind for all of its tables.
type ActionKind uint8

const (
	invalidActionKind ActionKind = iota
	RowActionKind
	EventTypeActionKind
)

func (k ActionKind) String() string {
	switch k {
	case RowActionKind:
		return "row"
	case EventTypeActionKind:
		return "event_type"
	default:
		return "invalid"
	}
}

func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "row":
		return RowActionKind, nil
	case "event_type", "event-type":
		return EventTypeActionKind, nil
	}
	return invalidActionKind, fmt.Errorf("unknown action kind %q", s)
}

// RowHandler receives every row that passed filtering.
type RowHandler interface {
	HandleRow(row Row) error
}

// EventTypeHandler receives the row together with its event type so it
// can branch on it.
type EventTypeHandler interface {
	HandleEvent(eventType EventType, row Row) error
}

type RowHandlerFunc func(row Row) error

func (f RowHandlerFunc) HandleRow(row Row) error {
	return f(row)
}

type EventTypeHandlerFunc func(eventType EventType, row Row) error

func (f EventTypeHandlerFunc) HandleEvent(eventType EventType, row Row) error {
	return f(eventType, row)
}

// Action is a tagged union of the two handler contracts. The zero Action
// is invalid.
type Action struct {
	kind      ActionKind
	row       RowHandler
	eventType EventTypeHandler
}

func RowAction(h RowHandler) Action {
	return Action{kind: RowActionKind, row: h}
}

func EventTypeAction(h EventTypeHandler) Action {
	return Action{kind: EventTypeActionKind, eventType: h}
}

// NewAction classifies handler. A handler that implements both contracts
// is ambiguous and must be wrapped explicitly with RowAction or
// EventTypeAction.
func NewAction(handler interface{}) (Action, error) {
	switch h := handler.(type) {
	case Action:
		if !h.Valid() {
			return Action{}, fmt.Errorf("action is not initialized")
		}
		return h, nil
	case nil:
		return Action{}, fmt.Errorf("action is required")
	}

	row, isRow := handler.(RowHandler)
	eventType, isEventType := handler.(EventTypeHandler)

	switch {
	case isRow && isEventType:
		return Action{}, fmt.Errorf("action type %T implements both RowHandler and EventTypeHandler, wrap it with RowAction or EventTypeAction", handler)
	case isRow:
		return RowAction(row), nil
	case isEventType:
		return EventTypeAction(eventType), nil
	default:
		return Action{}, fmt.Errorf("unsupported action type %T, must be a RowHandler or an EventTypeHandler", handler)
	}
}

func (a Action) Kind() ActionKind {
	return a.kind
}

func (a Action) Valid() bool {
	switch a.kind {
	case RowActionKind:
		return a.row != nil
	case EventTypeActionKind:
		return a.eventType != nil
	}
	return false
}

// Handler returns the wrapped handler.
func (a Action) Handler() interface{} {
	if a.kind == RowActionKind {
		return a.row
	}
	return a.eventType
}

func (a Action) invoke(eventType EventType, row Row) error {
	switch a.kind {
	case RowActionKind:
		return a.row.HandleRow(row)
	case EventTypeActionKind:
		return a.eventType.HandleEvent(eventType, row)
	}
	return fmt.Errorf("invalid action")
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%T)", a.kind, a.Handler())
}
