package ghostrouter

import (
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

var ignoredDatabases = map[string]bool{
	"mysql":              true,
	"information_schema": true,
	"performance_schema": true,
	"sys":                true,
}

func IsIgnoredDatabase(name string) bool {
	return ignoredDatabases[name]
}

// A comparable and lightweight type that stores the schema and table name.
type TableIdentifier struct {
	SchemaName string
	TableName  string
}

func (t TableIdentifier) String() string {
	return fmt.Sprintf("%s.%s", t.SchemaName, t.TableName)
}

// ColumnCache remembers the ordinal column names of tables. Binlog rows
// events only carry names when the server logs full row metadata, so misses
// are filled from information_schema.
type ColumnCache struct {
	DB *sql.DB

	mu      sync.RWMutex
	columns map[TableIdentifier][]string
	logger  *logrus.Entry
}

func NewColumnCache(db *sql.DB) *ColumnCache {
	return &ColumnCache{
		DB:      db,
		columns: make(map[TableIdentifier][]string),
		logger:  logrus.WithField("tag", "column_cache"),
	}
}

func (c *ColumnCache) Get(schemaName, tableName string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	columns, ok := c.columns[TableIdentifier{schemaName, tableName}]
	return columns, ok
}

func (c *ColumnCache) Put(schemaName, tableName string, columns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.columns == nil {
		c.columns = make(map[TableIdentifier][]string)
	}
	c.columns[TableIdentifier{schemaName, tableName}] = append([]string(nil), columns...)
}

// Columns returns the cached names, loading them on a miss. fromEvent is
// used when non-empty, as it always reflects the row image being decoded.
func (c *ColumnCache) Columns(schemaName, tableName string, fromEvent []string) ([]string, error) {
	if len(fromEvent) > 0 {
		c.Put(schemaName, tableName, fromEvent)
		return fromEvent, nil
	}

	if columns, ok := c.Get(schemaName, tableName); ok {
		return columns, nil
	}

	if c.DB == nil {
		return nil, fmt.Errorf("no column names known for %s.%s", schemaName, tableName)
	}

	columns, err := loadColumnNames(c.DB, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found in information_schema", schemaName, tableName)
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"schema":  schemaName,
			"table":   tableName,
			"columns": len(columns),
		}).Debug("loaded column names")
	}

	c.Put(schemaName, tableName, columns)
	return columns, nil
}

// InvalidateSchema drops every cached table of schemaName. An empty name
// drops everything.
func (c *ColumnCache) InvalidateSchema(schemaName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.columns {
		if schemaName == "" || id.SchemaName == schemaName {
			delete(c.columns, id)
		}
	}
}

func (c *ColumnCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.columns)
}

func columnNamesQuery(schemaName, tableName string) (string, []interface{}, error) {
	return sq.Select("COLUMN_NAME").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": schemaName}).
		Where(sq.Eq{"table_name": tableName}).
		OrderBy("ORDINAL_POSITION").
		ToSql()
}

func loadColumnNames(db *sql.DB, schemaName, tableName string) ([]string, error) {
	query, args, err := columnNamesQuery(schemaName, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}

	return columns, rows.Err()
}
