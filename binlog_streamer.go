package ghostrouter

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"
)

const caughtUpThreshold = 10 * time.Second

// RowFilter lets the streamer skip tables before their rows are decoded.
// Skipped reports the number of row changes dropped that way.
type RowFilter interface {
	Matches(schemaName, tableName string) bool
	Skipped(schemaName, tableName string, rows int)
}

type BinlogStreamer struct {
	DB           *sql.DB
	DBConfig     *DatabaseConfig
	MyServerId   uint32
	ErrorHandler ErrorHandler
	Filter       RowFilter

	Columns      *ColumnCache
	Decompressor *ColumnDecompressor

	binlogSyncer               *replication.BinlogSyncer
	binlogStreamer             *replication.BinlogStreamer
	positionMu                 sync.RWMutex
	lastStreamedBinlogPosition mysql.Position
	targetBinlogPosition       mysql.Position
	lastProcessedEventTime     time.Time
	lastLagMetricEmittedTime   time.Time

	stopRequested AtomicBoolean

	logger         *logrus.Entry
	eventListeners []func([]*RowChange) error
}

func (s *BinlogStreamer) ensureLogger() {
	if s.logger == nil {
		s.logger = logrus.WithField("tag", "binlog_streamer")
	}
}

func (s *BinlogStreamer) createBinlogSyncer() error {
	var err error
	var tlsConfig *tls.Config

	if s.DBConfig.TLS != nil {
		tlsConfig, err = s.DBConfig.TLS.BuildConfig()
		if err != nil {
			return err
		}
	}

	if s.MyServerId == 0 {
		s.MyServerId, err = s.generateNewServerId()
		if err != nil {
			s.logger.WithError(err).Error("could not generate unique server_id")
			return err
		}
	}

	syncerConfig := replication.BinlogSyncerConfig{
		ServerID:                s.MyServerId,
		Host:                    s.DBConfig.Host,
		Port:                    s.DBConfig.Port,
		User:                    s.DBConfig.User,
		Password:                s.DBConfig.Pass,
		TLSConfig:               tlsConfig,
		UseDecimal:              true,
		TimestampStringLocation: time.UTC,
	}

	s.binlogSyncer = replication.NewBinlogSyncer(syncerConfig)
	return nil
}

func (s *BinlogStreamer) ConnectBinlogStreamerToMysql() (mysql.Position, error) {
	s.ensureLogger()

	currentPosition, err := ShowMasterStatusBinlogPosition(s.DB)
	if err != nil {
		s.logger.WithError(err).Error("failed to read current binlog position")
		return mysql.Position{}, err
	}

	return s.ConnectBinlogStreamerToMysqlFrom(currentPosition)
}

func (s *BinlogStreamer) ConnectBinlogStreamerToMysqlFrom(startFromBinlogPosition mysql.Position) (mysql.Position, error) {
	s.ensureLogger()

	if s.Columns == nil {
		s.Columns = NewColumnCache(s.DB)
	}

	err := s.createBinlogSyncer()
	if err != nil {
		return mysql.Position{}, err
	}

	s.setLastStreamedBinlogPosition(startFromBinlogPosition)

	s.logger.WithFields(logrus.Fields{
		"file": startFromBinlogPosition.Name,
		"pos":  startFromBinlogPosition.Pos,
	}).Info("starting binlog streaming")

	s.binlogStreamer, err = s.binlogSyncer.StartSync(startFromBinlogPosition)
	if err != nil {
		s.logger.WithError(err).Error("unable to start binlog streamer")
		return mysql.Position{}, err
	}

	return startFromBinlogPosition, err
}

func (s *BinlogStreamer) Run() {
	s.ensureLogger()

	if s.binlogStreamer == nil {
		s.ErrorHandler.Fatal("binlog_streamer", ErrNotConnected)
		return
	}

	defer func() {
		s.logger.Info("exiting binlog streamer")
		s.binlogSyncer.Close()
	}()

	s.logger.Info("starting binlog streamer")
	for !s.stopRequested.Get() || s.GetLastStreamedBinlogPosition().Compare(s.targetBinlogPosition) < 0 {
		var ev *replication.BinlogEvent
		var timedOut bool

		err := WithRetries(5, 0, s.logger, "get binlog event", func() (er error) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			ev, er = s.binlogStreamer.GetEvent(ctx)

			if er == context.DeadlineExceeded {
				timedOut = true
				return nil
			}

			return er
		})

		if err != nil {
			s.ErrorHandler.Fatal("binlog_streamer", err)
			return
		}

		if timedOut {
			s.lastProcessedEventTime = time.Now()
			continue
		}

		if err := s.handleEvent(ev); err != nil {
			s.logger.WithError(err).Error("failed to handle binlog event")
			s.ErrorHandler.Fatal("binlog_streamer", err)
			return
		}
	}
}

func (s *BinlogStreamer) handleEvent(ev *replication.BinlogEvent) error {
	switch e := ev.Event.(type) {
	case *replication.RotateEvent:
		pos := mysql.Position{Name: string(e.NextLogName), Pos: uint32(e.Position)}
		s.setLastStreamedBinlogPosition(pos)
		s.logger.WithFields(logrus.Fields{
			"pos":  pos.Pos,
			"file": pos.Name,
		}).Info("rotated binlog file")
	case *replication.TableMapEvent:
		return nil
	case *replication.RowsEvent:
		if err := s.handleRowsEvent(ev); err != nil {
			return err
		}
		s.updateLastStreamedPosAndTime(ev)
	case *replication.QueryEvent:
		// e.Schema is the session database, not necessarily the one of the
		// altered table, so every cached table is dropped.
		if isDDL(string(e.Query)) {
			s.logger.WithField("schema", string(e.Schema)).Info("DDL detected, invalidating cached columns")
			s.Columns.InvalidateSchema("")
		}
		s.updateLastStreamedPosAndTime(ev)
	case *replication.FormatDescriptionEvent:
		// LogPos is 0 on this event, the position must not be recorded.
		return nil
	case *replication.GenericEvent:
		// go-mysql leaves unparsed events as empty GenericEvents.
		return nil
	default:
		s.updateLastStreamedPosAndTime(ev)
	}

	return nil
}

func (s *BinlogStreamer) AddEventListener(listener func([]*RowChange) error) {
	s.eventListeners = append(s.eventListeners, listener)
}

func (s *BinlogStreamer) GetLastStreamedBinlogPosition() mysql.Position {
	s.positionMu.RLock()
	defer s.positionMu.RUnlock()
	return s.lastStreamedBinlogPosition
}

func (s *BinlogStreamer) setLastStreamedBinlogPosition(pos mysql.Position) {
	s.positionMu.Lock()
	s.lastStreamedBinlogPosition = pos
	s.positionMu.Unlock()
}

func (s *BinlogStreamer) IsAlmostCaughtUp() bool {
	return time.Since(s.lastProcessedEventTime) < caughtUpThreshold
}

func (s *BinlogStreamer) FlushAndStop() {
	s.ensureLogger()
	s.logger.Info("requesting binlog streamer to stop")
	// The target position must be known before stopRequested is set, or Run
	// could exit thinking it already passed it.
	err := WithRetries(100, 600*time.Millisecond, s.logger, "read current binlog position", func() error {
		var err error
		s.targetBinlogPosition, err = ShowMasterStatusBinlogPosition(s.DB)
		return err
	})

	if err != nil {
		s.ErrorHandler.Fatal("binlog_streamer", err)
	}
	s.logger.WithField("target_position", s.targetBinlogPosition).Info("current stop binlog position was recorded")

	s.stopRequested.Set(true)
}

func (s *BinlogStreamer) updateLastStreamedPosAndTime(ev *replication.BinlogEvent) {
	if ev.Header.LogPos == 0 || ev.Header.Timestamp == 0 {
		s.logger.Panicf("logpos: %d %d %T", ev.Header.LogPos, ev.Header.Timestamp, ev.Event)
	}

	s.positionMu.Lock()
	s.lastStreamedBinlogPosition.Pos = ev.Header.LogPos
	s.positionMu.Unlock()

	eventTime := time.Unix(int64(ev.Header.Timestamp), 0)
	s.lastProcessedEventTime = eventTime

	if time.Since(s.lastLagMetricEmittedTime) >= time.Second {
		lag := time.Since(eventTime)
		metrics.Gauge("BinlogStreamer.Lag", lag.Seconds(), nil, 1.0)
		s.lastLagMetricEmittedTime = time.Now()
	}
}

func (s *BinlogStreamer) handleRowsEvent(ev *replication.BinlogEvent) error {
	rowsEvent := ev.Event.(*replication.RowsEvent)
	schemaName := string(rowsEvent.Table.Schema)
	tableName := string(rowsEvent.Table.Table)

	if ev.Header.LogPos == 0 {
		s.logger.Panicf("logpos: %d %d %T", ev.Header.LogPos, ev.Header.Timestamp, ev.Event)
	}

	if IsIgnoredDatabase(schemaName) {
		return nil
	}

	if s.Filter != nil && !s.Filter.Matches(schemaName, tableName) {
		s.Filter.Skipped(schemaName, tableName, rowChangeCount(ev))
		return nil
	}

	columns, err := s.Columns.Columns(schemaName, tableName, rowsEvent.Table.ColumnNameString())
	if err != nil {
		return err
	}

	if err := s.Decompressor.DecompressRows(tableName, columns, rowsEvent.Rows); err != nil {
		return err
	}

	changes, err := NewRowChanges(columns, ev)
	if err != nil {
		return err
	}

	if len(changes) == 0 {
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"schema": schemaName,
		"table":  tableName,
		"rows":   len(changes),
	}).Debugf("received %s at %v", changes[0].Type, time.Unix(int64(ev.Header.Timestamp), 0))

	metrics.Count("RowEvent", int64(len(changes)), []MetricTag{
		{"table", tableName},
		{"source", "binlog"},
	}, 1.0)

	for _, listener := range s.eventListeners {
		if err := listener(changes); err != nil {
			return err
		}
	}

	return nil
}

// rowChangeCount is the number of row changes a rows event decodes into.
func rowChangeCount(ev *replication.BinlogEvent) int {
	rows := len(ev.Event.(*replication.RowsEvent).Rows)
	if eventType, ok := EventTypeOf(ev.Header.EventType); ok && eventType == Update {
		return rows / 2
	}
	return rows
}

var ddlPrefixes = []string{"ALTER", "CREATE", "DROP", "RENAME", "TRUNCATE"}

func isDDL(query string) bool {
	query = strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range ddlPrefixes {
		if strings.HasPrefix(query, prefix) {
			return true
		}
	}
	return false
}

// generateNewServerId picks a random server id no replica of DB uses.
func (s *BinlogStreamer) generateNewServerId() (uint32, error) {
	taken, err := replicaServerIds(s.DB)
	if err != nil {
		return 0, err
	}

	for {
		id := randomServerId()
		if id == 0 {
			continue
		}
		if _, found := taken[id]; !found {
			return id, nil
		}
		s.logger.WithField("server_id", id).Warn("server_id was taken, retrying")
	}
}

func replicaServerIds(db *sql.DB) (map[uint32]struct{}, error) {
	rows, err := db.Query("SHOW SLAVE HOSTS")
	if err != nil {
		return nil, fmt.Errorf("could not list replicas: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	ids := make(map[uint32]struct{})
	for rows.Next() {
		var id uint32
		var ignored sql.NullString
		dest := []interface{}{&id}
		for i := 1; i < len(cols); i++ {
			dest = append(dest, &ignored)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("could not scan replica row: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}
