// Package rows provides the finite, non-restartable row sources a pipeline
// consumes: delimited text files, SQL result sets and in-memory slices.
package rows

import (
	"context"
	"strings"
)

// Row is one input record. Fields keep their raw text; positions past the
// end of the row read as "".
type Row struct {
	Source string
	Line   int
	Fields []string

	columns map[string]int
}

func (r Row) Len() int {
	return len(r.Fields)
}

func (r Row) At(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Index returns the position of a named column.
func (r Row) Index(name string) (int, bool) {
	i, ok := r.columns[name]
	return i, ok
}

// Get returns the named column's value.
func (r Row) Get(name string) string {
	i, ok := r.columns[name]
	if !ok {
		return ""
	}
	return r.At(i)
}

// Source yields rows until it returns io.EOF.
type Source interface {
	Name() string
	Columns() []string
	Next(ctx context.Context) (Row, error)
	Close() error
}

func columnIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return idx
}

// NewRow builds a row with named columns, mostly for tests.
func NewRow(source string, line int, columns []string, fields ...string) Row {
	return Row{
		Source:  source,
		Line:    line,
		Fields:  fields,
		columns: columnIndex(columns),
	}
}
