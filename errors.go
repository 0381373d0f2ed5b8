package ghostrouter

import (
	"errors"
	"fmt"
)

var (
	ErrNoSchemas    = errors.New("no schemas registered")
	ErrEmptyTables  = errors.New("tables is empty")
	ErrNotConnected = errors.New("binlog streamer is not connected")
)

// ConfigurationError aborts building routes. Schema or Table is empty when
// the error is not about one.
type ConfigurationError struct {
	Schema string
	Table  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Schema != "" && e.Table != "":
		return fmt.Sprintf("invalid configuration for %s.%s: %v", e.Schema, e.Table, e.Err)
	case e.Table != "":
		return fmt.Sprintf("invalid configuration for table %s: %v", e.Table, e.Err)
	case e.Schema != "":
		return fmt.Sprintf("invalid configuration for schema %s: %v", e.Schema, e.Err)
	default:
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ActionError is returned by Dispatch when the bound action fails.
type ActionError struct {
	Schema string
	Table  string
	Type   EventType
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action for %s.%s %s failed: %v", e.Schema, e.Table, e.Type, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
