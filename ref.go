package chartsync

import (
	"strconv"
	"strings"
)

// destination paths arrive rooted at the wire document,
// e.g. "/plotly/data/0/x". The root name is stripped before resolution.
const DocumentRootName = "plotly"

// Ref is a structural reference to a location inside the chart document.
type Ref struct {
	segments []string
}

func ParseRef(path string) *Ref {
	segments := []string{}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if len(segments) == 0 && segment == DocumentRootName {
			continue
		}
		segments = append(segments, segment)
	}
	return &Ref{
		segments: segments,
	}
}

func (self *Ref) String() string {
	return strings.Join(self.segments, "/")
}

// Resolve walks the document for all but the last segment and exposes the
// last segment as an assignable slot on the reached node. A reference that
// does not resolve is a configuration inconsistency, not a runtime fault:
// the caller is expected to skip the write.
func (self *Ref) Resolve(root *Node) (*Slot, bool) {
	if len(self.segments) == 0 {
		return nil, false
	}

	node := root
	for _, segment := range self.segments[:len(self.segments)-1] {
		next, ok := step(node, segment)
		if !ok {
			return nil, false
		}
		node = next
	}

	key := self.segments[len(self.segments)-1]
	switch node.Kind() {
	case NodeKindObject:
		return &Slot{
			parent: node,
			key:    key,
		}, true
	case NodeKindArray:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || node.Len() <= i {
			return nil, false
		}
		return &Slot{
			parent: node,
			index:  i,
			item:   true,
		}, true
	default:
		return nil, false
	}
}

func step(node *Node, segment string) (*Node, bool) {
	if node == nil {
		return nil, false
	}
	switch node.Kind() {
	case NodeKindObject:
		return node.Field(segment)
	case NodeKindArray:
		i, err := strconv.Atoi(segment)
		if err != nil {
			return nil, false
		}
		return node.Item(i)
	default:
		return nil, false
	}
}

// Slot is a settable location reached by resolving a Ref.
type Slot struct {
	parent *Node
	key    string
	index  int
	item   bool
}

func (self *Slot) Get() *Node {
	if self.item {
		item, _ := self.parent.Item(self.index)
		return item
	}
	field, _ := self.parent.Field(self.key)
	return field
}

func (self *Slot) Set(node *Node) {
	if self.item {
		self.parent.SetItem(self.index, node)
	} else {
		self.parent.SetField(self.key, node)
	}
}
