package chartsync

import (
	"context"

	"golang.org/x/exp/slices"
)

// Table is the streaming table collaborator. The engine only consumes this
// contract; the wire protocol, connection handling, and event delivery
// belong to the implementation (see the feed package).
type Table interface {
	Name() string
	// declared columns, name-addressable
	Columns() []string
	// Subscribe opens a streaming update feed scoped to exactly `columns`
	Subscribe(ctx context.Context, columns []string) (TableSubscription, error)
}

type TableUpdateFunction = func(update *TableUpdate)

type TableSubscription interface {
	// the returned function removes the callback
	AddUpdateCallback(updateCallback TableUpdateFunction) func()
	Close()
}

// TableUpdate is one incremental delta: for each column, the cell values of
// rows [Offset, Offset+len). Cells are host-native representations and are
// converted to plain values by an UnwrapFunction at extraction time.
type TableUpdate struct {
	Offset  int
	Columns map[string][]any
}

// UnwrapFunction converts one host-native cell to a plain value.
type UnwrapFunction = func(cell any) any

func IdentityUnwrap(cell any) any {
	return cell
}

// Accumulator is the per-table incremental state used to compute column
// snapshots from streaming deltas. It tracks only the bound columns.
type Accumulator struct {
	columnValues map[string][]any
}

func NewAccumulator(columns []string) *Accumulator {
	columnValues := map[string][]any{}
	for _, column := range columns {
		columnValues[column] = []any{}
	}
	return &Accumulator{
		columnValues: columnValues,
	}
}

func (self *Accumulator) Apply(update *TableUpdate) {
	for column, cells := range update.Columns {
		values, ok := self.columnValues[column]
		if !ok {
			// not a bound column
			continue
		}
		end := update.Offset + len(cells)
		if len(values) < end {
			values = slices.Grow(values, end-len(values))[:end]
		}
		copy(values[update.Offset:end], cells)
		self.columnValues[column] = values
	}
}

// Values materializes the current snapshot of one column with the unwrap
// transform applied. Returns false for columns the accumulator does not
// track, in which case the caller skips the column for this update.
func (self *Accumulator) Values(column string, unwrap UnwrapFunction) ([]any, bool) {
	cells, ok := self.columnValues[column]
	if !ok {
		return nil, false
	}
	if unwrap == nil {
		unwrap = IdentityUnwrap
	}
	values := make([]any, len(cells))
	for i, cell := range cells {
		values[i] = unwrap(cell)
	}
	return values, true
}
