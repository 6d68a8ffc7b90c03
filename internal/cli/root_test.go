package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/sqlforge/pkg/adapters/sqlite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// scaffoldProject builds a minimal project with one model, one macro, and an
// in-memory sqlite target.
func scaffoldProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "sqlforge.yml"), `
name: analytics
vars:
  start_date: "2026-01-01"
`)
	writeFile(t, filepath.Join(dir, "profiles.yml"), `
analytics:
  target: dev
  outputs:
    dev:
      type: sqlite
      schema: main
`)
	writeFile(t, filepath.Join(dir, "models", "stg_orders.sql"),
		"select 1 as id, '{{ var('start_date') }}' as start_date")
	writeFile(t, filepath.Join(dir, "models", "orders.sql"),
		"select {{ order_columns() }} from {{ ref('stg_orders') }}")
	writeFile(t, filepath.Join(dir, "macros", "utils.sql"),
		"{% macro order_columns() %}id, start_date{% endmacro %}")
	return dir
}

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args,
		"--project-dir", dir,
		"--profiles", filepath.Join(dir, "profiles.yml"),
	))
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	dir := scaffoldProject(t)

	out, err := runCLI(t, dir, "render", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "select id, start_date from main.stg_orders")
}

func TestRenderCommand_Vars(t *testing.T) {
	dir := scaffoldProject(t)

	out, err := runCLI(t, dir, "render", "stg_orders",
		"--vars", "{start_date: 2030-06-30}")
	require.NoError(t, err)
	assert.Contains(t, out, "'2030-06-30'")
}

func TestRenderCommand_UnknownModel(t *testing.T) {
	dir := scaffoldProject(t)

	_, err := runCLI(t, dir, "render", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "nope" not found`)
}

func TestCompileCommand(t *testing.T) {
	dir := scaffoldProject(t)

	out, err := runCLI(t, dir, "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 2 of 2 models")

	compiled, err := os.ReadFile(filepath.Join(dir, "target", "compiled", "models", "orders.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(compiled), "from main.stg_orders")
}

func TestListCommand(t *testing.T) {
	dir := scaffoldProject(t)

	out, err := runCLI(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "order_columns")
	assert.Contains(t, out, "2 models, 0 sources, 1 macros")
}

func TestQueryCommand(t *testing.T) {
	dir := scaffoldProject(t)

	out, err := runCLI(t, dir, "query", "select {{ 2 + 3 }} as answer")
	require.NoError(t, err)
	assert.Contains(t, out, "answer")
	assert.Contains(t, out, "5")
	assert.Contains(t, out, "(1 rows)")
}

func TestRunOperationCommand(t *testing.T) {
	dir := scaffoldProject(t)
	writeFile(t, filepath.Join(dir, "macros", "ops.sql"), `
{% macro make_table(name) %}
{% do run_query('create table ' + name + ' (id integer)') %}
{{ return('created ' + name) }}
{% endmacro %}
`)

	out, err := runCLI(t, dir, "run-operation", "make_table", "--args", "{name: widgets}")
	require.NoError(t, err)
	assert.Contains(t, out, "created widgets")
}

func TestMissingProjectFile(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlforge.yml")
}
