package rows

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 4 * 1024 * 1024

// Format describes the layout of a delimited text input.
type Format struct {
	// Delimiter separates fields; defaults to tab.
	Delimiter string `yaml:"delimiter"`
	// Comment marks lines to ignore when they start with it.
	Comment string `yaml:"comment"`
	// SkipLines drops this many leading physical lines before anything else.
	SkipLines int `yaml:"skip_lines" validate:"gte=0"`
	// Header takes column names from the first data line.
	Header bool `yaml:"header"`
}

func (f Format) delimiter() string {
	if f.Delimiter == "" {
		return "\t"
	}
	if f.Delimiter == `\t` || f.Delimiter == "tab" {
		return "\t"
	}
	if f.Delimiter == "pipe" {
		return "|"
	}
	return f.Delimiter
}

// DelimitedSource reads delimited lines, keeping trailing empty fields.
type DelimitedSource struct {
	name    string
	format  Format
	reader  io.ReadCloser
	scanner *bufio.Scanner
	columns []string
	index   map[string]int
	line    int
	started bool
}

// NewDelimitedSource wraps r. Columns name the positional fields unless the
// format reads them from a header line.
func NewDelimitedSource(name string, r io.ReadCloser, format Format, columns []string) *DelimitedSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &DelimitedSource{
		name:    name,
		format:  format,
		reader:  r,
		scanner: scanner,
		columns: columns,
		index:   columnIndex(columns),
	}
}

func (s *DelimitedSource) Name() string {
	return s.name
}

func (s *DelimitedSource) Columns() []string {
	return s.columns
}

func (s *DelimitedSource) Next(_ context.Context) (Row, error) {
	if !s.started {
		s.started = true
		for i := 0; i < s.format.SkipLines; i++ {
			if !s.scan() {
				return Row{}, s.eof()
			}
		}
		if s.format.Header {
			line, ok := s.nextDataLine()
			if !ok {
				return Row{}, s.eof()
			}
			s.columns = strings.Split(line, s.format.delimiter())
			s.index = columnIndex(s.columns)
		}
	}

	line, ok := s.nextDataLine()
	if !ok {
		return Row{}, s.eof()
	}

	return Row{
		Source:  s.name,
		Line:    s.line,
		Fields:  strings.Split(line, s.format.delimiter()),
		columns: s.index,
	}, nil
}

func (s *DelimitedSource) Close() error {
	return s.reader.Close()
}

func (s *DelimitedSource) scan() bool {
	if !s.scanner.Scan() {
		return false
	}
	s.line++
	return true
}

func (s *DelimitedSource) nextDataLine() (string, bool) {
	for s.scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s.format.Comment != "" && strings.HasPrefix(line, s.format.Comment) {
			continue
		}
		return line, true
	}
	return "", false
}

func (s *DelimitedSource) eof() error {
	if err := s.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s at line %d: %w", s.name, s.line+1, err)
	}
	return io.EOF
}
