package mapping

import (
	"fmt"
	"strings"
)

// DefinitionError reports an invalid source definition and where in the
// definition the problem sits.
type DefinitionError struct {
	Source  string
	Part    string
	Field   string
	Message string
}

func NewDefinitionError(msg string) *DefinitionError {
	return &DefinitionError{Message: msg}
}

func NewDefinitionErrorf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

func (e *DefinitionError) Error() string {
	path := []string{}
	if e.Source != "" {
		path = append(path, fmt.Sprintf("source '%s'", e.Source))
	}
	if e.Part != "" {
		path = append(path, e.Part)
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *DefinitionError) AddSource(name string) *DefinitionError {
	e.Source = name
	return e
}

// AddPart names the definition part, e.g. "entities[gene]".
func (e *DefinitionError) AddPart(part string) *DefinitionError {
	e.Part = part
	return e
}

func (e *DefinitionError) AddField(field string) *DefinitionError {
	e.Field = field
	return e
}
