package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		creds    core.Credentials
		expected string
	}{
		{
			name: "full credentials",
			creds: core.Credentials{
				Host:     "db.internal",
				Port:     5433,
				Database: "warehouse",
				User:     "etl",
				Password: "secret",
			},
			expected: "host=db.internal port=5433 dbname=warehouse sslmode=disable user=etl password=secret",
		},
		{
			name:     "defaults",
			creds:    core.Credentials{Database: "warehouse"},
			expected: "host=localhost port=5432 dbname=warehouse sslmode=disable",
		},
		{
			name: "no password",
			creds: core.Credentials{
				Host:     "localhost",
				Database: "warehouse",
				User:     "etl",
			},
			expected: "host=localhost port=5432 dbname=warehouse sslmode=disable user=etl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildDSN(tt.creds))
		})
	}
}

func TestAdapterRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))
}

func TestQuoteIdentifier(t *testing.T) {
	a := New(nil)
	assert.Equal(t, `"events"`, a.QuoteIdentifier("events"))
	assert.Equal(t, `"we""ird"`, a.QuoteIdentifier(`we"ird`))
}

func TestType(t *testing.T) {
	assert.Equal(t, "postgres", New(nil).Type())
}
