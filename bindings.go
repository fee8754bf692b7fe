package chartsync

import (
	"sort"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// column name -> destination refs in declared order
type ColumnBindings = map[string][]*Ref

// Bindings maps each source table to its column bindings. Built wholesale
// per document initialization; never patched incrementally.
type Bindings map[Table]ColumnBindings

// BuildBindings derives the binding map from the document's declared
// mapping metadata. Pure with respect to already-fetched metadata.
func BuildBindings(tableRefs []*TableRef) Bindings {
	bindings := Bindings{}
	for _, tableRef := range tableRefs {
		columnBindings, ok := bindings[tableRef.Table]
		if !ok {
			columnBindings = ColumnBindings{}
			bindings[tableRef.Table] = columnBindings
		}
		for column, paths := range tableRef.ColumnPaths {
			for _, path := range paths {
				ref := ParseRef(path)
				if ref.String() == "" {
					glog.Infof("[bindings]empty destination for %s/%s\n", tableRef.Table.Name(), column)
					continue
				}
				columnBindings[column] = append(columnBindings[column], ref)
			}
		}
	}
	return bindings
}

// Columns returns the union of bound columns for one table, restricted to
// columns the table actually declares. Missing columns are skipped rather
// than failing the subscription.
func (self Bindings) Columns(table Table) []string {
	columnBindings, ok := self[table]
	if !ok {
		return nil
	}
	declaredColumns := table.Columns()
	columns := []string{}
	for column := range columnBindings {
		if slices.Contains(declaredColumns, column) {
			columns = append(columns, column)
		} else {
			glog.Infof("[bindings]column %s not on table %s, skipping\n", column, table.Name())
		}
	}
	sort.Strings(columns)
	return columns
}

func (self Bindings) Tables() []Table {
	tables := []Table{}
	for table := range self {
		tables = append(tables, table)
	}
	return tables
}
