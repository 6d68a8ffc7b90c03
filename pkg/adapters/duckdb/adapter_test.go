package duckdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func TestAdapterRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("duckdb"))
}

func TestType(t *testing.T) {
	assert.Equal(t, "duckdb", New(nil).Type())
}

func TestQuoteIdentifier(t *testing.T) {
	a := New(nil)
	assert.Equal(t, `"events"`, a.QuoteIdentifier("events"))
}

func TestConnectAndQuery(t *testing.T) {
	a := New(nil)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx, core.Credentials{Type: "duckdb"}))
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(ctx, "create table t (id integer, name varchar)"))
	require.NoError(t, a.Exec(ctx, "insert into t values (1, 'a'), (2, 'b')"))

	res, err := a.Query(ctx, "select count(*) as n from t")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	cols, err := a.GetColumnsInRelation(ctx, &core.Relation{Identifier: "t"})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
}
