package rows

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

// Queryer is the part of a database handle a QuerySource needs.
type Queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// QuerySource streams a SQL result set as rows named after its columns.
type QuerySource struct {
	name    string
	rows    *sqlx.Rows
	columns []string
	index   map[string]int
	line    int
}

func NewQuerySource(ctx context.Context, db Queryer, name, query string, args ...any) (*QuerySource, error) {
	ctx, span := tracing.StartSpan(ctx, "rows.NewQuerySource")
	defer span.End()

	result, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query for %s: %w", name, err)
	}
	columns, err := result.Columns()
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("failed to read columns for %s: %w", name, err)
	}

	return &QuerySource{
		name:    name,
		rows:    result,
		columns: columns,
		index:   columnIndex(columns),
	}, nil
}

func (s *QuerySource) Name() string {
	return s.name
}

func (s *QuerySource) Columns() []string {
	return s.columns
}

func (s *QuerySource) Next(_ context.Context) (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Row{}, fmt.Errorf("failed to read %s at row %d: %w", s.name, s.line+1, err)
		}
		return Row{}, io.EOF
	}

	values, err := s.rows.SliceScan()
	if err != nil {
		return Row{}, fmt.Errorf("failed to scan %s at row %d: %w", s.name, s.line+1, err)
	}
	s.line++

	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = stringify(v)
	}

	return Row{
		Source:  s.name,
		Line:    s.line,
		Fields:  fields,
		columns: s.index,
	}, nil
}

func (s *QuerySource) Close() error {
	return s.rows.Close()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
