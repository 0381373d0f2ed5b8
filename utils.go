package ghostrouter

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/sirupsen/logrus"
)

// WithRetries calls f until it succeeds or maxRetries attempts failed. A
// maxRetries of 0 retries forever.
func WithRetries(maxRetries int, sleep time.Duration, logger *logrus.Entry, verb string, f func() error) error {
	return WithRetriesContext(context.Background(), maxRetries, sleep, logger, verb, f)
}

// WithRetriesContext is WithRetries that gives up once ctx is done, also
// while sleeping between attempts.
func WithRetriesContext(ctx context.Context, maxRetries int, sleep time.Duration, logger *logrus.Entry, verb string, f func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = f()
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}

		if maxRetries != 0 && attempt >= maxRetries {
			logger.WithError(err).Errorf("failed to %s after %d attempts, retry limit exceeded", verb, attempt)
			return err
		}

		logger.WithError(err).Errorf("failed to %s, %d of %d max retries", verb, attempt, maxRetries)

		if sleep <= 0 {
			continue
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func randomServerId() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}

	return binary.LittleEndian.Uint32(buf[:])
}

type AtomicBoolean struct {
	v atomic.Bool
}

func (a *AtomicBoolean) Set(b bool) {
	a.v.Store(b)
}

func (a *AtomicBoolean) Get() bool {
	return a.v.Load()
}

// ShowMasterStatusBinlogPosition returns the current binlog coordinates of
// db. Servers without GTIDs return one column less.
func ShowMasterStatusBinlogPosition(db *sql.DB) (mysql.Position, error) {
	rows, err := db.Query("SHOW MASTER STATUS")
	if err != nil {
		return mysql.Position{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return mysql.Position{}, err
		}
		return mysql.Position{}, fmt.Errorf("no results from show master status, is binary logging enabled?")
	}

	cols, err := rows.Columns()
	if err != nil {
		return mysql.Position{}, err
	}

	var pos mysql.Position
	var ignored sql.NullString
	dest := []interface{}{&pos.Name, &pos.Pos}
	for i := 2; i < len(cols); i++ {
		dest = append(dest, &ignored)
	}

	if err = rows.Scan(dest...); err != nil {
		return mysql.Position{}, err
	}

	return pos, nil
}
