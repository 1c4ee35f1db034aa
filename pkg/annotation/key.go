package annotation

import (
	"fmt"
	"strings"
)

type Field string

const (
	FieldSubject     Field = "subject"
	FieldTerm        Field = "term"
	FieldQualifier   Field = "qualifier"
	FieldContext     Field = "context"
	FieldPublication Field = "publication"
	FieldExtension   Field = "extension"
)

// Key holds the row values that can identify an annotation. Which of them
// take part in equality is decided by a KeySpec.
type Key struct {
	Subject     string
	Term        string
	Qualifier   string
	Context     string
	Publication string
	Extension   string
}

// KeySpec lists the significant fields of a source's annotation key.
type KeySpec []Field

// DefaultKeySpec treats every field as significant.
var DefaultKeySpec = KeySpec{FieldSubject, FieldTerm, FieldQualifier, FieldContext, FieldPublication, FieldExtension}

func ParseKeySpec(names []string) (KeySpec, error) {
	if len(names) == 0 {
		return DefaultKeySpec, nil
	}
	spec := make(KeySpec, 0, len(names))
	for _, name := range names {
		f := Field(strings.ToLower(strings.TrimSpace(name)))
		switch f {
		case FieldSubject, FieldTerm, FieldQualifier, FieldContext, FieldPublication, FieldExtension:
			spec = append(spec, f)
		default:
			return nil, fmt.Errorf("unknown annotation key field '%s'", name)
		}
	}
	return spec, nil
}

func (s KeySpec) Has(f Field) bool {
	for _, field := range s {
		if field == f {
			return true
		}
	}
	return false
}

// Project blanks the insignificant fields of k so that keys compare equal
// exactly when their significant fields do.
func (s KeySpec) Project(k Key) Key {
	if len(s) == 0 {
		s = DefaultKeySpec
	}
	var out Key
	for _, f := range s {
		switch f {
		case FieldSubject:
			out.Subject = k.Subject
		case FieldTerm:
			out.Term = k.Term
		case FieldQualifier:
			out.Qualifier = k.Qualifier
		case FieldContext:
			out.Context = k.Context
		case FieldPublication:
			out.Publication = k.Publication
		case FieldExtension:
			out.Extension = k.Extension
		}
	}
	return out
}

// Identity decides when two evidence contributions are the same evidence.
type Identity string

const (
	IdentityCode         Identity = "code"
	IdentityCodeTypeWith Identity = "code_type_with"
)

func (i Identity) of(e Evidence) string {
	if i == IdentityCodeTypeWith {
		return strings.Join([]string{e.Code, e.Type, e.With}, ":")
	}
	return e.Code
}
