package chartsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseRef(t *testing.T) {
	ref := ParseRef("/plotly/data/0/x")
	assert.Equal(t, "data/0/x", ref.String())

	// empty segments and the root name are dropped
	ref = ParseRef("//plotly//layout/title")
	assert.Equal(t, "layout/title", ref.String())

	// the root name is only stripped at the front
	ref = ParseRef("/data/0/plotly")
	assert.Equal(t, "data/0/plotly", ref.String())
}

func TestResolveSet(t *testing.T) {
	document, err := ParseNode([]byte(`{
		"data": [{"type": "scatter", "x": [], "y": []}],
		"layout": {"title": "t"}
	}`))
	assert.Equal(t, nil, err)

	slot, ok := ParseRef("/plotly/data/0/x").Resolve(document)
	assert.Equal(t, true, ok)
	slot.Set(NewValueArray([]any{1.0, 2.0}))

	trace, ok := document.Field("data")
	assert.Equal(t, true, ok)
	item, ok := trace.Item(0)
	assert.Equal(t, true, ok)
	x, ok := item.Field("x")
	assert.Equal(t, true, ok)
	assert.Equal(t, []any{1.0, 2.0}, x.Interface())

	// array index slot
	slot, ok = ParseRef("/plotly/data/0").Resolve(document)
	assert.Equal(t, true, ok)
	assert.Equal(t, item, slot.Get())
}

func TestResolveMiss(t *testing.T) {
	document, err := ParseNode([]byte(`{
		"data": [{"x": 1}],
		"layout": {}
	}`))
	assert.Equal(t, nil, err)

	// missing intermediate field
	_, ok := ParseRef("/plotly/missing/0/x").Resolve(document)
	assert.Equal(t, false, ok)

	// index out of range
	_, ok = ParseRef("/plotly/data/1/x").Resolve(document)
	assert.Equal(t, false, ok)

	// non-numeric index
	_, ok = ParseRef("/plotly/data/first/x").Resolve(document)
	assert.Equal(t, false, ok)

	// walking through a scalar
	_, ok = ParseRef("/plotly/data/0/x/deep").Resolve(document)
	assert.Equal(t, false, ok)

	// empty reference
	_, ok = ParseRef("/plotly").Resolve(document)
	assert.Equal(t, false, ok)
}
