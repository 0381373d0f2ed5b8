package ghostrouter_test

import (
	"errors"
	"testing"

	"github.com/Shopify/ghostrouter"
	"github.com/Shopify/ghostrouter/testhelpers"
	"github.com/stretchr/testify/suite"
)

type SchemaTestSuite struct {
	*testhelpers.GhostrouterUnitTestSuite

	first  *testhelpers.Recorder
	second *testhelpers.Recorder
}

func (this *SchemaTestSuite) SetupTest() {
	this.GhostrouterUnitTestSuite.SetupTest()
	this.first = &testhelpers.Recorder{}
	this.second = &testhelpers.Recorder{}
}

func (this *SchemaTestSuite) TestCreateKeepsInsertionOrder() {
	schema, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		AddTableBuilder(ghostrouter.BuildTable("customer").Action(this.first.RowHandler())).
		Create()
	this.Require().Nil(err)

	this.Require().Equal("shop", schema.Name())
	this.Require().Equal(ghostrouter.RowActionKind, schema.ActionKind())
	this.Require().Equal(2, schema.Len())
	this.Require().Equal("order", schema.Tables()[0].Name())
	this.Require().Equal("customer", schema.Tables()[1].Name())
}

func (this *SchemaTestSuite) TestDuplicateTableLastWins() {
	schema, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		AddTable(ghostrouter.BuildTable("order").Action(this.second.RowHandler()).Columns("id").MustCreate()).
		Create()
	this.Require().Nil(err)

	this.Require().Equal(1, schema.Len())
	table, ok := schema.Table("order")
	this.Require().True(ok)
	this.Require().True(table.HasColumnFilter())
}

func (this *SchemaTestSuite) TestKindMismatchIsConfigurationError() {
	_, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.EventTypeHandler()).MustCreate()).
		Create()
	this.Require().NotNil(err)

	var cerr *ghostrouter.ConfigurationError
	this.Require().True(errors.As(err, &cerr))
	this.Require().Equal("shop", cerr.Schema)
	this.Require().Equal("order", cerr.Table)
}

func (this *SchemaTestSuite) TestFailingTableBuilderCarriesSchemaName() {
	_, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).
		AddTableBuilder(ghostrouter.BuildTable("order")).
		Create()

	var cerr *ghostrouter.ConfigurationError
	this.Require().True(errors.As(err, &cerr))
	this.Require().Equal("shop", cerr.Schema)
	this.Require().Equal("order", cerr.Table)
}

func (this *SchemaTestSuite) TestEmptySchemaIsRejected() {
	_, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).Create()
	this.Require().True(errors.Is(err, ghostrouter.ErrEmptyTables))

	_, err = ghostrouter.BuildSchema("", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		Create()
	this.Require().NotNil(err)

	_, err = ghostrouter.BuildSchema("shop", ghostrouter.ActionKind(0)).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		Create()
	this.Require().NotNil(err)
}

func (this *SchemaTestSuite) TestEqualityIgnoresTables() {
	shop, err := ghostrouter.BuildSchema("shop", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		Create()
	this.Require().Nil(err)

	sameName, err := ghostrouter.BuildSchema("shop", ghostrouter.EventTypeActionKind).
		AddTable(
			ghostrouter.BuildTable("customer").Action(this.second.EventTypeHandler()).MustCreate(),
			ghostrouter.BuildTable("refund").Action(this.second.EventTypeHandler()).MustCreate(),
		).
		Create()
	this.Require().Nil(err)

	billing, err := ghostrouter.BuildSchema("billing", ghostrouter.RowActionKind).
		AddTable(ghostrouter.BuildTable("order").Action(this.first.RowHandler()).MustCreate()).
		Create()
	this.Require().Nil(err)

	this.Require().True(shop.Equal(sameName))
	this.Require().True(sameName.Equal(shop))
	this.Require().False(shop.Equal(billing))
	this.Require().False(shop.Equal(nil))
}

func TestSchemaTestSuite(t *testing.T) {
	suite.Run(t, &SchemaTestSuite{GhostrouterUnitTestSuite: &testhelpers.GhostrouterUnitTestSuite{}})
}
