package chartsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func testTheme(colorway ...string) *Theme {
	template := NewObject()
	layout := NewObject()
	layout.SetField("colorway", NewValueArray(colorwayValues(colorway)))
	template.SetField("layout", layout)
	return NewTheme(template)
}

func TestColorwayRemap(t *testing.T) {
	trace, _ := ParseNode([]byte(`{"marker": {"color": "blue"}, "line": {"color": "red"}}`))
	layout, _ := ParseNode([]byte(`{"template": {"layout": {"colorway": ["red", "blue"]}}}`))
	document := NewDocument([]*Node{trace}, layout)

	// the document template is not user authored, so the base colorway
	// takes effect and trace colors remap by position
	applyTemplate(document, testTheme("#111", "#222"), false)

	assert.Equal(t, []string{"#111", "#222"}, templateColorway(mustField(t, document.Layout(), "template")))

	marker := mustField(t, document.Data()[0], "marker")
	assert.Equal(t, "#222", mustField(t, marker, "color").Value())
	line := mustField(t, document.Data()[0], "line")
	assert.Equal(t, "#111", mustField(t, line, "color").Value())
}

func TestColorwayRemapWrapsAround(t *testing.T) {
	trace, _ := ParseNode([]byte(`{"marker": {"color": "c"}}`))
	layout, _ := ParseNode([]byte(`{"template": {"layout": {"colorway": ["a", "b", "c"]}}}`))
	document := NewDocument([]*Node{trace}, layout)

	applyTemplate(document, testTheme("#111", "#222"), false)

	// index 2 cycles into the shorter effective colorway
	marker := mustField(t, document.Data()[0], "marker")
	assert.Equal(t, "#111", mustField(t, marker, "color").Value())
}

func TestUserSetTemplateKeepsColorway(t *testing.T) {
	trace, _ := ParseNode([]byte(`{"marker": {"color": "red"}}`))
	layout, _ := ParseNode([]byte(`{"template": {"layout": {"colorway": ["red", "blue"]}}}`))
	document := NewDocument([]*Node{trace}, layout)

	applyTemplate(document, testTheme("#111", "#222"), true)

	// only the colorway is carried over from the declared template; other
	// template fields come from the base
	template := mustField(t, document.Layout(), "template")
	assert.Equal(t, []string{"red", "blue"}, templateColorway(template))

	marker := mustField(t, document.Data()[0], "marker")
	assert.Equal(t, "red", mustField(t, marker, "color").Value())
}

func TestDefaultThemeApplies(t *testing.T) {
	trace, _ := ParseNode([]byte(`{"x": []}`))
	document := NewDocument([]*Node{trace}, NewObject())

	applyTemplate(document, DefaultTheme(), false)

	template := mustField(t, document.Layout(), "template")
	assert.Equal(t, defaultColorway, templateColorway(template))
}

func TestColorArrayRemap(t *testing.T) {
	trace, _ := ParseNode([]byte(`{"marker": {"color": ["red", "blue", "#abc"]}}`))
	layout, _ := ParseNode([]byte(`{"template": {"layout": {"colorway": ["red", "blue"]}}}`))
	document := NewDocument([]*Node{trace}, layout)

	applyTemplate(document, testTheme("#111", "#222"), false)

	// per-point color arrays remap positionally; values outside the old
	// colorway are untouched
	marker := mustField(t, document.Data()[0], "marker")
	assert.Equal(t, []any{"#111", "#222", "#abc"}, mustField(t, marker, "color").Interface())
}

func mustField(t *testing.T, node *Node, name string) *Node {
	field, ok := node.Field(name)
	assert.Equal(t, true, ok)
	return field
}
