package chartsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestNodeParse(t *testing.T) {
	node, err := ParseNode([]byte(`{"a": [1, "x", null], "b": {"c": true}}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, NodeKindObject, node.Kind())

	a, ok := node.Field("a")
	assert.Equal(t, true, ok)
	assert.Equal(t, NodeKindArray, a.Kind())
	assert.Equal(t, 3, a.Len())

	// deterministic field order in marshaled output
	assert.Equal(t, `{"a":[1,"x",null],"b":{"c":true}}`, node.String())
}

func TestNodeClone(t *testing.T) {
	node, err := ParseNode([]byte(`{"colorway": ["#111", "#222"]}`))
	assert.Equal(t, nil, err)

	clone := node.Clone()
	colorway, ok := clone.Field("colorway")
	assert.Equal(t, true, ok)
	item, ok := colorway.Item(0)
	assert.Equal(t, true, ok)
	item.SetValue("#333")

	// the original is unaffected
	original, _ := node.Field("colorway")
	originalItem, _ := original.Item(0)
	assert.Equal(t, "#111", originalItem.Value())
}
