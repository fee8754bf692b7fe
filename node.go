package chartsync

import (
	"encoding/json"
	"fmt"
	"sort"
)

// the chart document is a tree of tagged variants rather than raw dynamic
// maps, so that reference resolution can make the skip-on-miss policy
// explicit instead of panicking through blind field access

type NodeKind int

const (
	NodeKindScalar NodeKind = iota
	NodeKindObject
	NodeKindArray
)

type Node struct {
	kind   NodeKind
	fields map[string]*Node
	items  []*Node
	value  any
}

func NewScalar(value any) *Node {
	return &Node{
		kind:  NodeKindScalar,
		value: value,
	}
}

func NewObject() *Node {
	return &Node{
		kind:   NodeKindObject,
		fields: map[string]*Node{},
	}
}

func NewArray(items ...*Node) *Node {
	return &Node{
		kind:  NodeKindArray,
		items: items,
	}
}

// NewValueArray wraps plain values as an array node of scalars.
func NewValueArray(values []any) *Node {
	items := make([]*Node, len(values))
	for i, value := range values {
		items[i] = NewScalar(value)
	}
	return NewArray(items...)
}

// ParseNode converts a JSON document into a node tree.
func ParseNode(documentJson []byte) (*Node, error) {
	var value any
	if err := json.Unmarshal(documentJson, &value); err != nil {
		return nil, err
	}
	return NodeFromValue(value), nil
}

func NodeFromValue(value any) *Node {
	switch v := value.(type) {
	case map[string]any:
		node := NewObject()
		for name, fieldValue := range v {
			node.fields[name] = NodeFromValue(fieldValue)
		}
		return node
	case []any:
		items := make([]*Node, len(v))
		for i, itemValue := range v {
			items[i] = NodeFromValue(itemValue)
		}
		return NewArray(items...)
	case *Node:
		return v
	default:
		return NewScalar(v)
	}
}

func (self *Node) Kind() NodeKind {
	return self.kind
}

func (self *Node) Field(name string) (*Node, bool) {
	if self.kind != NodeKindObject {
		return nil, false
	}
	field, ok := self.fields[name]
	return field, ok
}

func (self *Node) SetField(name string, field *Node) {
	if self.kind != NodeKindObject {
		return
	}
	self.fields[name] = field
}

func (self *Node) FieldNames() []string {
	names := []string{}
	for name := range self.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (self *Node) Len() int {
	return len(self.items)
}

func (self *Node) Item(i int) (*Node, bool) {
	if self.kind != NodeKindArray || i < 0 || len(self.items) <= i {
		return nil, false
	}
	return self.items[i], true
}

func (self *Node) SetItem(i int, item *Node) {
	if self.kind != NodeKindArray || i < 0 || len(self.items) <= i {
		return
	}
	self.items[i] = item
}

func (self *Node) Items() []*Node {
	return self.items
}

func (self *Node) Value() any {
	return self.value
}

func (self *Node) SetValue(value any) {
	if self.kind != NodeKindScalar {
		return
	}
	self.value = value
}

// Interface converts the node tree back to plain maps, slices, and scalars.
func (self *Node) Interface() any {
	switch self.kind {
	case NodeKindObject:
		value := map[string]any{}
		for name, field := range self.fields {
			value[name] = field.Interface()
		}
		return value
	case NodeKindArray:
		value := make([]any, len(self.items))
		for i, item := range self.items {
			value[i] = item.Interface()
		}
		return value
	default:
		return self.value
	}
}

func (self *Node) Clone() *Node {
	switch self.kind {
	case NodeKindObject:
		clone := NewObject()
		for name, field := range self.fields {
			clone.fields[name] = field.Clone()
		}
		return clone
	case NodeKindArray:
		items := make([]*Node, len(self.items))
		for i, item := range self.items {
			items[i] = item.Clone()
		}
		return NewArray(items...)
	default:
		return NewScalar(self.value)
	}
}

func (self *Node) MarshalJSON() ([]byte, error) {
	switch self.kind {
	case NodeKindObject:
		var buff []byte
		buff = append(buff, '{')
		// deterministic field order
		for i, name := range self.FieldNames() {
			if 0 < i {
				buff = append(buff, ',')
			}
			nameJson, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			fieldJson, err := json.Marshal(self.fields[name])
			if err != nil {
				return nil, err
			}
			buff = append(buff, nameJson...)
			buff = append(buff, ':')
			buff = append(buff, fieldJson...)
		}
		buff = append(buff, '}')
		return buff, nil
	case NodeKindArray:
		var buff []byte
		buff = append(buff, '[')
		for i, item := range self.items {
			if 0 < i {
				buff = append(buff, ',')
			}
			itemJson, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			buff = append(buff, itemJson...)
		}
		buff = append(buff, ']')
		return buff, nil
	default:
		return json.Marshal(self.value)
	}
}

func (self *Node) UnmarshalJSON(src []byte) error {
	node, err := ParseNode(src)
	if err != nil {
		return err
	}
	*self = *node
	return nil
}

func (self *Node) String() string {
	nodeJson, err := json.Marshal(self)
	if err != nil {
		return fmt.Sprintf("<node error: %v>", err)
	}
	return string(nodeJson)
}
