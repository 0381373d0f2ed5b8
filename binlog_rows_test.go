package ghostrouter_test

import (
	"testing"
	"time"

	"github.com/Shopify/ghostrouter"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BinlogRowsTestSuite struct {
	suite.Suite

	tableMapEvent *replication.TableMapEvent
	columns       []string
}

func (this *BinlogRowsTestSuite) SetupTest() {
	this.tableMapEvent = &replication.TableMapEvent{
		Schema: []byte("shop"),
		Table:  []byte("order"),
	}
	this.columns = []string{"id", "total", "is_deleted", "note"}
}

func (this *BinlogRowsTestSuite) event(eventType replication.EventType, rows ...[]interface{}) *replication.BinlogEvent {
	return &replication.BinlogEvent{
		Header: &replication.EventHeader{EventType: eventType, LogPos: 100, Timestamp: 1},
		Event: &replication.RowsEvent{
			Table: this.tableMapEvent,
			Rows:  rows,
		},
	}
}

func (this *BinlogRowsTestSuite) TestInsertRowsBecomeInserts() {
	changes, err := ghostrouter.NewRowChanges(this.columns, this.event(replication.WRITE_ROWS_EVENTv2,
		[]interface{}{int64(1), decimal.New(1050, -2), int8(0), []byte("first")},
		[]interface{}{int64(2), decimal.New(3, 0), int8(1), nil},
	))
	this.Require().Nil(err)
	this.Require().Len(changes, 2)

	this.Require().Equal("shop", changes[0].Schema)
	this.Require().Equal("order", changes[0].Table)
	this.Require().Equal(ghostrouter.Insert, changes[0].Type)
	this.Require().Equal(map[string]string{
		"id":         "1",
		"total":      "10.5",
		"is_deleted": "0",
		"note":       "first",
	}, changes[0].Fields)
	this.Require().Nil(changes[0].Before)

	_, hasNote := changes[1].Fields["note"]
	this.Require().False(hasNote)
}

func (this *BinlogRowsTestSuite) TestUnsignedIntegersAreNotNegative() {
	this.tableMapEvent.ColumnCount = 5
	this.tableMapEvent.ColumnType = []byte{
		mysql.MYSQL_TYPE_TINY,
		mysql.MYSQL_TYPE_INT24,
		mysql.MYSQL_TYPE_LONG,
		mysql.MYSQL_TYPE_LONGLONG,
		mysql.MYSQL_TYPE_SHORT,
	}
	// all but the last numeric column are unsigned
	this.tableMapEvent.SignednessBitmap = []byte{0xF0}

	columns := []string{"status", "rank", "user_id", "big", "delta"}
	changes, err := ghostrouter.NewRowChanges(columns, this.event(replication.WRITE_ROWS_EVENTv2,
		[]interface{}{int8(-56), int32(-1), int32(-1294967296), int64(-1), int16(-5)},
	))
	this.Require().Nil(err)
	this.Require().Len(changes, 1)

	this.Require().Equal(map[string]string{
		"status":  "200",
		"rank":    "16777215",
		"user_id": "3000000000",
		"big":     "18446744073709551615",
		"delta":   "-5",
	}, changes[0].Fields)
}

func (this *BinlogRowsTestSuite) TestUpdateRowsArePaired() {
	changes, err := ghostrouter.NewRowChanges(this.columns, this.event(replication.UPDATE_ROWS_EVENTv1,
		[]interface{}{int64(1), nil, int8(0), "old"},
		[]interface{}{int64(1), nil, int8(1), "new"},
		[]interface{}{int64(2), nil, int8(0), "a"},
		[]interface{}{int64(2), nil, int8(0), "b"},
	))
	this.Require().Nil(err)
	this.Require().Len(changes, 2)

	this.Require().Equal(ghostrouter.Update, changes[0].Type)
	this.Require().Equal("old", changes[0].Before["note"])
	this.Require().Equal("new", changes[0].Fields["note"])
	this.Require().Equal("1", changes[0].Fields["is_deleted"])
	this.Require().Equal("b", changes[1].Fields["note"])
}

func (this *BinlogRowsTestSuite) TestDeleteRowsCarryTheBeforeImage() {
	changes, err := ghostrouter.NewRowChanges(this.columns, this.event(replication.DELETE_ROWS_EVENTv2,
		[]interface{}{uint32(9), 1.25, true, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	))
	this.Require().Nil(err)
	this.Require().Len(changes, 1)
	this.Require().Equal(ghostrouter.Delete, changes[0].Type)
	this.Require().Equal(map[string]string{
		"id":         "9",
		"total":      "1.25",
		"is_deleted": "true",
		"note":       "2024-01-02 03:04:05",
	}, changes[0].Fields)
}

func (this *BinlogRowsTestSuite) TestWrongColumnCountReturnsError() {
	_, err := ghostrouter.NewRowChanges(this.columns, this.event(replication.WRITE_ROWS_EVENTv2,
		[]interface{}{int64(1)},
	))
	this.Require().NotNil(err)
	this.Require().Contains(err.Error(), "shop.order")
}

func (this *BinlogRowsTestSuite) TestOddUpdateRowsReturnsError() {
	_, err := ghostrouter.NewRowChanges(this.columns, this.event(replication.UPDATE_ROWS_EVENTv2,
		[]interface{}{int64(1), nil, int8(0), "old"},
	))
	this.Require().NotNil(err)
}

func (this *BinlogRowsTestSuite) TestNonRowsEventReturnsError() {
	_, err := ghostrouter.NewRowChanges(this.columns, &replication.BinlogEvent{
		Header: &replication.EventHeader{EventType: replication.QUERY_EVENT},
		Event:  &replication.QueryEvent{},
	})
	this.Require().NotNil(err)
}

func (this *BinlogRowsTestSuite) TestEventTypeOf() {
	eventType, ok := ghostrouter.EventTypeOf(replication.WRITE_ROWS_EVENTv1)
	this.Require().True(ok)
	this.Require().Equal(ghostrouter.Insert, eventType)

	_, ok = ghostrouter.EventTypeOf(replication.ROTATE_EVENT)
	this.Require().False(ok)
}

func TestBinlogRowsTestSuite(t *testing.T) {
	suite.Run(t, new(BinlogRowsTestSuite))
}
