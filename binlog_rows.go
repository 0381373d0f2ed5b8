package ghostrouter

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/shopspring/decimal"
)

// Layout used when a binlog value arrives as a time.Time.
const binlogTimeLayout = "2006-01-02 15:04:05.999999"

func verifyValuesHasTheSameLengthAsColumns(tableColumns []string, values []interface{}, databaseHint, tableHint string) error {
	if len(tableColumns) != len(values) {
		return fmt.Errorf(
			"table %s.%s has %d columns but binlog has %d columns instead",
			databaseHint,
			tableHint,
			len(tableColumns),
			len(values),
		)
	}
	return nil
}

// EventTypeOf maps a binlog rows event type onto an EventType.
func EventTypeOf(t replication.EventType) (EventType, bool) {
	switch t {
	case replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return Insert, true
	case replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return Update, true
	case replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return Delete, true
	default:
		return 0, false
	}
}

// NewRowChanges converts one rows event into row changes. columns holds the
// column names of the table in ordinal order. NULL columns are left out of
// the field maps.
func NewRowChanges(columns []string, ev *replication.BinlogEvent) ([]*RowChange, error) {
	rowsEvent, ok := ev.Event.(*replication.RowsEvent)
	if !ok {
		return nil, fmt.Errorf("expected a rows event, got %T", ev.Event)
	}

	eventType, ok := EventTypeOf(ev.Header.EventType)
	if !ok {
		return nil, fmt.Errorf("unrecognized rows event: %s", ev.Header.EventType.String())
	}

	database := string(rowsEvent.Table.Schema)
	table := string(rowsEvent.Table.Table)
	layout := newRowLayout(columns, rowsEvent.Table)

	for _, row := range rowsEvent.Rows {
		if err := verifyValuesHasTheSameLengthAsColumns(columns, row, database, table); err != nil {
			return nil, err
		}
	}

	if eventType != Update {
		changes := make([]*RowChange, len(rowsEvent.Rows))
		for i, row := range rowsEvent.Rows {
			changes[i] = &RowChange{
				Schema: database,
				Table:  table,
				Type:   eventType,
				Fields: layout.fields(row),
			}
		}
		return changes, nil
	}

	// UPDATE events carry the before and after images as consecutive rows.
	if len(rowsEvent.Rows)%2 != 0 {
		return nil, fmt.Errorf("update event on %s.%s has an odd number of rows (%d)", database, table, len(rowsEvent.Rows))
	}

	changes := make([]*RowChange, len(rowsEvent.Rows)/2)
	for i := 0; i < len(rowsEvent.Rows); i += 2 {
		changes[i/2] = &RowChange{
			Schema: database,
			Table:  table,
			Type:   Update,
			Before: layout.fields(rowsEvent.Rows[i]),
			Fields: layout.fields(rowsEvent.Rows[i+1]),
		}
	}

	return changes, nil
}

// rowLayout names the values of a row and knows which integer columns are
// unsigned. go-mysql decodes every integer as signed.
type rowLayout struct {
	columns     []string
	unsigned    map[int]bool
	columnTypes []byte
}

func newRowLayout(columns []string, tableMap *replication.TableMapEvent) rowLayout {
	layout := rowLayout{columns: columns}
	if tableMap != nil {
		layout.unsigned = tableMap.UnsignedMap()
		layout.columnTypes = tableMap.ColumnType
	}
	return layout
}

func (l rowLayout) fields(values []interface{}) map[string]string {
	fields := make(map[string]string, len(l.columns))
	for i, column := range l.columns {
		value := values[i]
		if l.unsigned[i] {
			value = l.asUnsigned(i, value)
		}
		if s, ok := stringifyValue(value); ok {
			fields[column] = s
		}
	}
	return fields
}

func (l rowLayout) asUnsigned(i int, value interface{}) interface{} {
	switch v := value.(type) {
	case int8:
		return uint8(v)
	case int16:
		return uint16(v)
	case int32:
		if i < len(l.columnTypes) && l.columnTypes[i] == mysql.MYSQL_TYPE_INT24 {
			return uint32(v) & 0xFFFFFF
		}
		return uint32(v)
	case int64:
		return uint64(v)
	default:
		return value
	}
}

// stringifyValue renders a decoded binlog value as text. It returns false
// for NULL.
func stringifyValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case decimal.Decimal:
		return v.String(), true
	case time.Time:
		return v.Format(binlogTimeLayout), true
	case bool:
		return strconv.FormatBool(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Sprint(v), true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}
