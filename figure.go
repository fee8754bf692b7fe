package chartsync

import (
	"context"
)

// FigureProvider resolves a chart document handle to its current descriptor:
// the plotly regions, the template flag, and the table mappings.
// `Fetch` is expected to suspend (network round trip) and is awaited before
// the binding map is considered ready.
type FigureProvider interface {
	Fetch(ctx context.Context) (*FigureDescriptor, error)
}

type FigureDescriptor struct {
	// ordered trace objects
	Data []*Node
	// nested visual configuration, optionally including a declared template
	Layout *Node
	// whether the document author explicitly set a non-default template
	IsUserSetTemplate bool
	// per source table, the declared column to destination-path mapping
	TableRefs []*TableRef
}

type TableRef struct {
	Table Table
	// column name -> destination paths, in declared order,
	// rooted at the wire document (see DocumentRootName)
	ColumnPaths map[string][]string
}

// Document is the live chart document. The structural shape never changes
// after initialization. Only values at bound locations are replaced, by the
// update synchronizer, and color fields once by the template normalizer.
type Document struct {
	root *Node
}

func NewDocument(data []*Node, layout *Node) *Document {
	if layout == nil {
		layout = NewObject()
	}
	root := NewObject()
	root.SetField("data", NewArray(data...))
	root.SetField("layout", layout)
	return &Document{
		root: root,
	}
}

func (self *Document) Root() *Node {
	return self.root
}

func (self *Document) Data() []*Node {
	data, ok := self.root.Field("data")
	if !ok {
		return nil
	}
	return data.Items()
}

func (self *Document) Layout() *Node {
	layout, _ := self.root.Field("layout")
	return layout
}
