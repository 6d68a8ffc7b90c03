package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))

	a, err := adapter.New("sqlite", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", a.Type())
}

func TestAdapter_ConnectAndQuery(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx, core.Credentials{Type: "sqlite"}))
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(ctx, "CREATE TABLE events (id integer primary key, name text not null)"))
	require.NoError(t, a.Exec(ctx, "INSERT INTO events (name) VALUES ('signup'), ('login')"))

	result, err := a.Query(ctx, "SELECT id, name FROM events ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.ColumnNames)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "signup", result.Rows[0][1])
}

func TestAdapter_GetColumnsInRelation(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx, core.Credentials{Type: "sqlite"}))
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(ctx, "CREATE TABLE users (id integer primary key, email text not null)"))

	rel := core.NewRelation("", "", "users", core.QuotePolicy{})
	cols, err := a.GetColumnsInRelation(ctx, &rel)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "email", cols[1].Name)
	assert.False(t, cols[1].Nullable)
}

func TestAdapter_GetColumnsInRelation_Missing(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx, core.Credentials{Type: "sqlite"}))
	defer func() { _ = a.Close() }()

	rel := core.NewRelation("", "", "missing_table", core.QuotePolicy{})
	_, err := a.GetColumnsInRelation(ctx, &rel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAdapter_QuoteIdentifier(t *testing.T) {
	a := New(nil)
	assert.Equal(t, `"users"`, a.QuoteIdentifier("users"))
	assert.Equal(t, `"odd""name"`, a.QuoteIdentifier(`odd"name`))
}
