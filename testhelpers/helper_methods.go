package testhelpers

import (
	"github.com/Shopify/ghostrouter"
)

func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

func Insert(schema, table string, fields map[string]string) *ghostrouter.RowChange {
	return &ghostrouter.RowChange{Schema: schema, Table: table, Type: ghostrouter.Insert, Fields: fields}
}

func Update(schema, table string, before, after map[string]string) *ghostrouter.RowChange {
	return &ghostrouter.RowChange{Schema: schema, Table: table, Type: ghostrouter.Update, Before: before, Fields: after}
}

func Delete(schema, table string, fields map[string]string) *ghostrouter.RowChange {
	return &ghostrouter.RowChange{Schema: schema, Table: table, Type: ghostrouter.Delete, Fields: fields}
}
