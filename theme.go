package chartsync

import (
	"golang.org/x/exp/slices"
)

// default trace color cycle, matching the plotly qualitative palette
var defaultColorway = []string{
	"#636efa",
	"#ef553b",
	"#00cc96",
	"#ab63fa",
	"#ffa15a",
	"#19d3f3",
	"#ff6692",
	"#b6e880",
	"#ff97ff",
	"#fecb52",
}

// Theme is a base visual theme shared by model instances. It is passed
// explicitly to each model rather than held as process state.
type Theme struct {
	template *Node
}

// NewTheme wraps a template node shaped like plotly's
// `layout.template`, i.e. `{"layout": {"colorway": [...], ...}}`.
func NewTheme(template *Node) *Theme {
	return &Theme{
		template: template,
	}
}

func DefaultTheme() *Theme {
	template := NewObject()
	layout := NewObject()
	layout.SetField("colorway", NewValueArray(colorwayValues(defaultColorway)))
	layout.SetField("paper_bgcolor", NewScalar("#ffffff"))
	layout.SetField("plot_bgcolor", NewScalar("#ffffff"))
	font := NewObject()
	font.SetField("color", NewScalar("#2a2a2e"))
	layout.SetField("font", font)
	template.SetField("layout", layout)
	return NewTheme(template)
}

// Template returns a fresh copy of the base template, safe to splice into a
// document.
func (self *Theme) Template() *Node {
	return self.template.Clone()
}

func (self *Theme) Colorway() []string {
	return templateColorway(self.template)
}

// applyTemplate constructs the effective `layout.template` and rewrites
// trace color references. Runs exactly once per document initialization,
// before any table-driven update.
//
// The effective template starts from the base theme. A user-authored
// template overrides only the colorway; every other template field comes
// from the base. Declared templates are assumed to agree with the base
// theme on everything except color.
func applyTemplate(document *Document, theme *Theme, isUserSetTemplate bool) {
	layout := document.Layout()
	if layout == nil {
		return
	}

	oldColorway := []string{}
	if declared, ok := layout.Field("template"); ok {
		oldColorway = templateColorway(declared)
	}

	template := theme.Template()
	if isUserSetTemplate && 0 < len(oldColorway) {
		if templateLayout, ok := template.Field("layout"); ok {
			templateLayout.SetField("colorway", NewValueArray(colorwayValues(oldColorway)))
		}
	}
	layout.SetField("template", template)

	newColorway := templateColorway(template)
	if len(oldColorway) == 0 || len(newColorway) == 0 {
		return
	}

	// positional remap so traces keep cycling consistently after the
	// theme substitution
	for _, trace := range document.Data() {
		remapColors(trace, oldColorway, newColorway)
	}
}

func templateColorway(template *Node) []string {
	if template == nil {
		return nil
	}
	layout, ok := template.Field("layout")
	if !ok {
		return nil
	}
	colorwayNode, ok := layout.Field("colorway")
	if !ok {
		return nil
	}
	colorway := []string{}
	for _, item := range colorwayNode.Items() {
		if color, ok := item.Value().(string); ok {
			colorway = append(colorway, color)
		}
	}
	return colorway
}

func colorwayValues(colorway []string) []any {
	values := make([]any, len(colorway))
	for i, color := range colorway {
		values[i] = color
	}
	return values
}

// remapColors rewrites color-valued fields that reference positions in the
// old colorway to the equivalent positions in the new colorway.
func remapColors(node *Node, oldColorway []string, newColorway []string) {
	switch node.Kind() {
	case NodeKindObject:
		for _, name := range node.FieldNames() {
			field, _ := node.Field(name)
			if name == "color" {
				remapColorValues(field, oldColorway, newColorway)
			} else {
				remapColors(field, oldColorway, newColorway)
			}
		}
	case NodeKindArray:
		for _, item := range node.Items() {
			remapColors(item, oldColorway, newColorway)
		}
	}
}

func remapColorValues(node *Node, oldColorway []string, newColorway []string) {
	switch node.Kind() {
	case NodeKindScalar:
		if color, ok := node.Value().(string); ok {
			if i := slices.Index(oldColorway, color); 0 <= i {
				node.SetValue(newColorway[i%len(newColorway)])
			}
		}
	case NodeKindArray:
		// per-point color arrays cycle the same way
		for _, item := range node.Items() {
			remapColorValues(item, oldColorway, newColorway)
		}
	}
}
