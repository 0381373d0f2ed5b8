package ghostrouter

import (
	"strings"

	"github.com/golang/snappy"
	"github.com/sirupsen/logrus"
)

const (
	// CompressionSnappy is used to identify Snappy (https://google.github.io/snappy/) compressed column data
	CompressionSnappy = "SNAPPY"
)

type (
	// TableColumnCompressionConfig represents compression configuration for a
	// column in a table as table -> column -> compression-type
	// ex: books -> contents -> snappy
	TableColumnCompressionConfig map[string]map[string]string
)

// UnsupportedCompressionError is used to identify errors resulting
// from attempting to decompress unsupported algorithms
type UnsupportedCompressionError struct {
	table     string
	column    string
	algorithm string
}

func (e UnsupportedCompressionError) Error() string {
	return "Compression algorithm: " + e.algorithm +
		" not supported on table: " + e.table +
		" for column: " + e.column
}

// ColumnDecompressor inflates compressed columns of binlog rows in place,
// so that conditions see the plain value.
type ColumnDecompressor struct {
	logger *logrus.Entry

	tableColumnCompressions TableColumnCompressionConfig
}

// NewColumnDecompressor validates the algorithms of config. Table and column
// names are matched case-insensitively.
func NewColumnDecompressor(config TableColumnCompressionConfig) (*ColumnDecompressor, error) {
	normalized := make(TableColumnCompressionConfig, len(config))
	for table, columns := range config {
		tableColumns := make(map[string]string, len(columns))
		for column, algorithm := range columns {
			if strings.ToUpper(algorithm) != CompressionSnappy {
				return nil, UnsupportedCompressionError{
					table:     table,
					column:    column,
					algorithm: algorithm,
				}
			}
			tableColumns[strings.ToLower(column)] = algorithm
		}
		normalized[strings.ToLower(table)] = tableColumns
	}

	return &ColumnDecompressor{
		logger:                  logrus.WithField("tag", "column_decompressor"),
		tableColumnCompressions: normalized,
	}, nil
}

func (c *ColumnDecompressor) IsCompressedTable(table string) bool {
	if c == nil {
		return false
	}
	_, ok := c.tableColumnCompressions[strings.ToLower(table)]
	return ok
}

// Decompress will apply the configured decompression algorithm to the configured columns data
func (c *ColumnDecompressor) Decompress(table, column, algorithm string, compressed []byte) ([]byte, error) {
	switch strings.ToUpper(algorithm) {
	case CompressionSnappy:
		return snappy.Decode(nil, compressed)
	default:
		return nil, UnsupportedCompressionError{
			table:     table,
			column:    column,
			algorithm: algorithm,
		}
	}
}

// DecompressRows replaces the compressed columns of every row. Values that
// are not byte slices (NULL included) are left alone.
func (c *ColumnDecompressor) DecompressRows(table string, columns []string, rows [][]interface{}) error {
	if !c.IsCompressedTable(table) {
		return nil
	}

	tableCompression := c.tableColumnCompressions[strings.ToLower(table)]
	for idx, column := range columns {
		algorithm, ok := tableCompression[strings.ToLower(column)]
		if !ok {
			continue
		}

		for _, row := range rows {
			if idx >= len(row) {
				continue
			}

			var compressed []byte
			switch v := row[idx].(type) {
			case []byte:
				compressed = v
			case string:
				compressed = []byte(v)
			default:
				continue
			}

			decompressed, err := c.Decompress(table, column, algorithm, compressed)
			if err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"table":  table,
					"column": column,
				}).Error("failed to decompress column")
				return err
			}
			row[idx] = decompressed
		}
	}

	return nil
}
