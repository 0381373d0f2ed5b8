package ghostrouter_test

import (
	"errors"
	"testing"

	"github.com/Shopify/ghostrouter"
	"github.com/Shopify/ghostrouter/condition"
	"github.com/Shopify/ghostrouter/testhelpers"
	"github.com/stretchr/testify/suite"
)

type bothHandler struct{}

func (bothHandler) HandleRow(ghostrouter.Row) error                         { return nil }
func (bothHandler) HandleEvent(ghostrouter.EventType, ghostrouter.Row) error { return nil }

type TableTestSuite struct {
	*testhelpers.GhostrouterUnitTestSuite

	recorder *testhelpers.Recorder
}

func (this *TableTestSuite) SetupTest() {
	this.GhostrouterUnitTestSuite.SetupTest()
	this.recorder = &testhelpers.Recorder{}
}

func (this *TableTestSuite) TestCreateClassifiesHandlers() {
	rowTable, err := ghostrouter.BuildTable("order").Action(this.recorder.RowHandler()).Create()
	this.Require().Nil(err)
	this.Require().Equal(ghostrouter.RowActionKind, rowTable.Action().Kind())

	eventTable, err := ghostrouter.BuildTable("order").Action(this.recorder.EventTypeHandler()).Create()
	this.Require().Nil(err)
	this.Require().Equal(ghostrouter.EventTypeActionKind, eventTable.Action().Kind())

	wrapped, err := ghostrouter.BuildTable("order").Action(ghostrouter.RowAction(bothHandler{})).Create()
	this.Require().Nil(err)
	this.Require().Equal(ghostrouter.RowActionKind, wrapped.Action().Kind())
}

func (this *TableTestSuite) TestCreateRejectsBadActions() {
	for _, handler := range []interface{}{nil, "not a handler", bothHandler{}, ghostrouter.Action{}} {
		_, err := ghostrouter.BuildTable("order").Action(handler).Create()
		this.Require().NotNil(err, "%T", handler)

		var cerr *ghostrouter.ConfigurationError
		this.Require().True(errors.As(err, &cerr))
		this.Require().Equal("order", cerr.Table)
	}
}

func (this *TableTestSuite) TestCreateRejectsEmptyName() {
	_, err := ghostrouter.BuildTable("").Action(this.recorder.RowHandler()).Create()
	this.Require().NotNil(err)
}

func (this *TableTestSuite) TestCreateRejectsUnknownEventType() {
	_, err := ghostrouter.BuildTable("order").
		Action(this.recorder.RowHandler()).
		ForbidEventType(ghostrouter.EventType(9)).
		Create()
	this.Require().NotNil(err)
}

func (this *TableTestSuite) TestColumnsAndForbiddenMask() {
	table := ghostrouter.BuildTable("order").
		Action(this.recorder.RowHandler()).
		Columns("b", "a").
		Columns("a").
		ForbidEventType(ghostrouter.Delete, ghostrouter.Delete).
		MustCreate()

	this.Require().True(table.HasColumnFilter())
	this.Require().Equal([]string{"a", "b"}, table.Columns())
	this.Require().True(table.Forbids(ghostrouter.Delete))
	this.Require().False(table.Forbids(ghostrouter.Insert))
	this.Require().Equal(ghostrouter.MaskOf(ghostrouter.Delete), table.ForbiddenMask())
}

func (this *TableTestSuite) TestNoColumnsMeansAllColumns() {
	table := ghostrouter.BuildTable("order").Action(this.recorder.RowHandler()).MustCreate()
	this.Require().False(table.HasColumnFilter())
	this.Require().Nil(table.Columns())
}

func (this *TableTestSuite) TestEmptyContainerIsNoCondition() {
	table := ghostrouter.BuildTable("order").
		Action(this.recorder.RowHandler()).
		Condition(condition.NewContainerBuilder().Create()).
		MustCreate()
	this.Require().Nil(table.Condition())
}

func (this *TableTestSuite) TestBuilderMutationAfterCreateDoesNotLeak() {
	builder := ghostrouter.BuildTable("order").Action(this.recorder.RowHandler()).Columns("a")
	table := builder.MustCreate()

	builder.Columns("b").ForbidEventType(ghostrouter.Insert)
	this.Require().Equal([]string{"a"}, table.Columns())
	this.Require().False(table.Forbids(ghostrouter.Insert))
}

func (this *TableTestSuite) TestEqualComparesNamesOnly() {
	a := ghostrouter.BuildTable("order").Action(this.recorder.RowHandler()).MustCreate()
	b := ghostrouter.BuildTable("order").Action(this.recorder.EventTypeHandler()).Columns("x").MustCreate()
	c := ghostrouter.BuildTable("customer").Action(this.recorder.RowHandler()).MustCreate()

	this.Require().True(a.Equal(b))
	this.Require().False(a.Equal(c))
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, &TableTestSuite{GhostrouterUnitTestSuite: &testhelpers.GhostrouterUnitTestSuite{}})
}
