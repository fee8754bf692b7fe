package chartsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBuildBindings(t *testing.T) {
	t1 := newTestTable("t1", "X", "Y")
	t2 := newTestTable("t2", "Z")

	bindings := BuildBindings([]*TableRef{
		{
			Table: t1,
			ColumnPaths: map[string][]string{
				"X": {"/plotly/data/0/x", "/plotly/data/1/x"},
				"Y": {"/plotly/data/0/y"},
			},
		},
		{
			Table: t2,
			ColumnPaths: map[string][]string{
				"Z": {"/plotly/data/2/x"},
			},
		},
	})

	// exactly the declared tables, columns, and destinations
	assert.Equal(t, 2, len(bindings))

	t1Bindings := bindings[t1]
	assert.Equal(t, 2, len(t1Bindings))
	assert.Equal(t, 2, len(t1Bindings["X"]))
	assert.Equal(t, "data/0/x", t1Bindings["X"][0].String())
	assert.Equal(t, "data/1/x", t1Bindings["X"][1].String())
	assert.Equal(t, 1, len(t1Bindings["Y"]))
	assert.Equal(t, "data/0/y", t1Bindings["Y"][0].String())

	t2Bindings := bindings[t2]
	assert.Equal(t, 1, len(t2Bindings))
	assert.Equal(t, "data/2/x", t2Bindings["Z"][0].String())
}

func TestBindingsColumns(t *testing.T) {
	table := newTestTable("t", "X", "Y")
	bindings := BuildBindings([]*TableRef{
		{
			Table: table,
			ColumnPaths: map[string][]string{
				"Y": {"/plotly/data/0/y"},
				"X": {"/plotly/data/0/x"},
				// not declared on the table, skipped non-fatally
				"Missing": {"/plotly/data/0/z"},
			},
		},
	})

	assert.Equal(t, []string{"X", "Y"}, bindings.Columns(table))
	assert.Equal(t, []string(nil), bindings.Columns(newTestTable("other")))
}

func TestBindingsMergeSameTable(t *testing.T) {
	table := newTestTable("t", "X")
	bindings := BuildBindings([]*TableRef{
		{
			Table: table,
			ColumnPaths: map[string][]string{
				"X": {"/plotly/data/0/x"},
			},
		},
		{
			Table: table,
			ColumnPaths: map[string][]string{
				"X": {"/plotly/data/1/x"},
			},
		},
	})

	assert.Equal(t, 1, len(bindings))
	assert.Equal(t, 2, len(bindings[table]["X"]))
}
