package rows

import (
	"context"
	"io"
)

// SliceSource serves rows held in memory.
type SliceSource struct {
	name    string
	columns []string
	index   map[string]int
	data    [][]string
	pos     int
}

func NewSliceSource(name string, columns []string, data ...[]string) *SliceSource {
	return &SliceSource{
		name:    name,
		columns: columns,
		index:   columnIndex(columns),
		data:    data,
	}
}

func (s *SliceSource) Name() string {
	return s.name
}

func (s *SliceSource) Columns() []string {
	return s.columns
}

func (s *SliceSource) Next(_ context.Context) (Row, error) {
	if s.pos >= len(s.data) {
		return Row{}, io.EOF
	}
	fields := s.data[s.pos]
	s.pos++
	return Row{
		Source:  s.name,
		Line:    s.pos,
		Fields:  fields,
		columns: s.index,
	}, nil
}

func (s *SliceSource) Close() error {
	return nil
}
