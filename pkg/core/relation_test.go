package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelation_Render(t *testing.T) {
	cases := []struct {
		name string
		rel  Relation
		want string
	}{
		{
			name: "unquoted",
			rel:  NewRelation("db", "main", "events", QuotePolicy{}),
			want: "db.main.events",
		},
		{
			name: "fully quoted",
			rel:  NewRelation("db", "main", "events", QuotePolicy{Database: true, Schema: true, Identifier: true}),
			want: `"db"."main"."events"`,
		},
		{
			name: "missing database",
			rel:  NewRelation("", "main", "events", QuotePolicy{}),
			want: "main.events",
		},
		{
			name: "identifier only",
			rel:  NewRelation("", "", "events", QuotePolicy{Identifier: true}),
			want: `"events"`,
		},
		{
			name: "embedded quote doubled",
			rel:  NewRelation("", "", `we"ird`, QuotePolicy{Identifier: true}),
			want: `"we""ird"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rel.Render())
			assert.Equal(t, tc.want, tc.rel.String())
		})
	}
}

func TestQuotePolicy_Merge(t *testing.T) {
	base := QuotePolicy{Database: true}

	merged := base.Merge(map[string]bool{"database": false, "identifier": true})
	assert.False(t, merged.Database)
	assert.False(t, merged.Schema)
	assert.True(t, merged.Identifier)

	// nil overrides leave the policy unchanged
	same := base.Merge(nil)
	assert.Equal(t, base, same)
}

func TestManifest_ResolveRef(t *testing.T) {
	local := &Node{Name: "orders", PackageName: "analytics"}
	other := &Node{Name: "orders", PackageName: "shared"}
	m := &StaticManifest{ModelNodes: []*Node{other, local}}

	got, ok := m.ResolveRef("orders", "analytics")
	assert.True(t, ok)
	assert.Same(t, local, got)

	got, ok = m.ResolveRef("orders", "elsewhere")
	assert.True(t, ok)
	assert.Same(t, other, got)

	_, ok = m.ResolveRef("missing", "analytics")
	assert.False(t, ok)
}

func TestManifest_ResolveSource(t *testing.T) {
	src := &Node{Name: "raw_events"}
	m := &StaticManifest{SourceNodes: map[string]*Node{"tracking.raw_events": src}}

	got, ok := m.ResolveSource("tracking", "raw_events")
	assert.True(t, ok)
	assert.Same(t, src, got)

	_, ok = m.ResolveSource("tracking", "missing")
	assert.False(t, ok)
}
