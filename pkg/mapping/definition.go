// Package mapping turns a declarative source definition into a row handler:
// which columns key which entities, which records link them, and how
// annotation rows fold into annotations with evidence.
package mapping

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/annotation"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/normalizers"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rows"
)

// Definition declares how one source's rows map onto items.
type Definition struct {
	Name        string      `yaml:"name" validate:"required"`
	Description string      `yaml:"description"`
	Format      rows.Format `yaml:"format"`
	// MinFields is the narrowest acceptable row; narrower rows are fatal.
	MinFields int      `yaml:"min_fields" validate:"gte=0"`
	Columns   []string `yaml:"columns"`
	// Sentinels replace the default absent-value tokens.
	Sentinels []string `yaml:"sentinels"`

	DataSource   string `yaml:"data_source"`
	DataSetTitle string `yaml:"data_set"`

	Entities    []EntityMapping     `yaml:"entities" validate:"dive"`
	Pairs       []PairMapping       `yaml:"pairs" validate:"dive"`
	Annotations []AnnotationMapping `yaml:"annotations" validate:"dive"`
	Children    []ChildMapping      `yaml:"children" validate:"dive"`
	Links       []LinkMapping       `yaml:"links" validate:"dive"`
}

// FieldMapping produces one attribute value from a column or a constant.
type FieldMapping struct {
	Attribute string   `yaml:"attribute" validate:"required"`
	Column    string   `yaml:"column"`
	Const     string   `yaml:"const"`
	Default   string   `yaml:"default"`
	Normalize []string `yaml:"normalize"`
	// Format is a fmt pattern with a single %s for the value.
	Format string `yaml:"format"`
}

type EntityMapping struct {
	Name   string `yaml:"name" validate:"required"`
	Class  string `yaml:"class" validate:"required"`
	Index  string `yaml:"index" validate:"required"`
	Column string `yaml:"column" validate:"required_without=KeyColumns"`
	// KeyColumns builds the key from several columns joined by
	// KeySeparator ("|" by default); a row missing any of them has no item.
	KeyColumns   []string `yaml:"key_columns"`
	KeySeparator string   `yaml:"key_separator"`
	// HiddenKey dedups items by key without storing it as the index
	// attribute.
	HiddenKey bool     `yaml:"hidden_key"`
	Normalize []string `yaml:"normalize"`
	// Split lists separator runes for multi-valued key columns.
	Split         string   `yaml:"split"`
	StripPrefixes []string `yaml:"strip_prefixes"`
	// PrefixIndex keys values starting with a prefix by another index; the
	// value is kept whole, e.g. "HGNC:" -> secondaryIdentifier.
	PrefixIndex map[string]string `yaml:"prefix_index"`

	Taxon          string `yaml:"taxon"`
	TaxonColumn    string `yaml:"taxon_column"`
	OrganismColumn string `yaml:"organism_column"`

	Attributes []FieldMapping `yaml:"attributes" validate:"dive"`
	// References point the item at entities declared before this one.
	References []ReferenceMapping `yaml:"references" validate:"dive"`

	PublicationColumn     string `yaml:"publication_column"`
	PublicationXrefColumn string `yaml:"publication_xref_column"`
	// PublicationSplit lists separator runes for a column citing several
	// publications.
	PublicationSplit string `yaml:"publication_split"`
	PublicationAs    string `yaml:"publication_as" validate:"omitempty,oneof=reference collection"`

	// Optional entities may be absent without making dependent parts
	// unresolvable; pairs, annotations and links on them are skipped.
	Optional bool `yaml:"optional"`
}

type PairMapping struct {
	Class          string `yaml:"class" validate:"required"`
	Left           string `yaml:"left" validate:"required"`
	Right          string `yaml:"right" validate:"required"`
	LeftReference  string `yaml:"left_reference"`
	RightReference string `yaml:"right_reference"`
	// Mirror also creates the record from right to left.
	Mirror bool `yaml:"mirror"`
	// Dedup skips a directed pair already created in the run.
	Dedup    bool `yaml:"dedup"`
	SkipSelf bool `yaml:"skip_self"`
	// Collection, when set, lists the record on its left entity.
	Collection        string         `yaml:"collection"`
	Attributes        []FieldMapping `yaml:"attributes" validate:"dive"`
	PublicationColumn string         `yaml:"publication_column"`
}

type ReferenceMapping struct {
	Name   string `yaml:"name" validate:"required"`
	Entity string `yaml:"entity" validate:"required"`
}

type AnnotationMapping struct {
	Class             string `yaml:"class" validate:"required"`
	Subject           string `yaml:"subject" validate:"required"`
	SubjectReference  string `yaml:"subject_reference"`
	Term              string `yaml:"term" validate:"required"`
	TermReference     string `yaml:"term_reference"`
	SubjectCollection string `yaml:"subject_collection"`
	// Key lists the significant key fields; empty means all of them.
	Key []string `yaml:"key"`

	QualifierColumn   string `yaml:"qualifier_column"`
	ContextColumn     string `yaml:"context_column"`
	ExtensionColumn   string `yaml:"extension_column"`
	PublicationColumn string `yaml:"publication_column"`

	EvidenceClass      string `yaml:"evidence_class" validate:"required"`
	EvidenceCollection string `yaml:"evidence_collection"`
	CodeColumn         string `yaml:"code_column" validate:"required"`
	CodeClass          string `yaml:"code_class"`
	CodeAttribute      string `yaml:"code_attribute"`
	CodeReference      string `yaml:"code_reference"`
	TypeColumn         string `yaml:"type_column"`
	WithColumn         string `yaml:"with_column"`
	WithAttribute      string `yaml:"with_attribute"`
	Identity           string `yaml:"identity" validate:"omitempty,oneof=code code_type_with"`
	PublicationsOn     string `yaml:"publications_on" validate:"omitempty,oneof=evidence annotation both"`

	Attributes         []FieldMapping     `yaml:"attributes" validate:"dive"`
	EvidenceAttributes []FieldMapping     `yaml:"evidence_attributes" validate:"dive"`
	References         []ReferenceMapping `yaml:"references" validate:"dive"`

	// DataSourceColumn holds a source code mapped to a data source name
	// through DataSources; unknown codes are used as names.
	DataSourceColumn string            `yaml:"data_source_column"`
	DataSources      map[string]string `yaml:"data_sources"`
}

type ChildMapping struct {
	Class           string             `yaml:"class" validate:"required"`
	Parent          string             `yaml:"parent" validate:"required"`
	Collection      string             `yaml:"collection" validate:"required"`
	ParentReference string             `yaml:"parent_reference"`
	References      []ReferenceMapping `yaml:"references" validate:"dive"`
	Attributes      []FieldMapping     `yaml:"attributes" validate:"dive"`

	PublicationColumn string `yaml:"publication_column"`
	PublicationAs     string `yaml:"publication_as" validate:"omitempty,oneof=reference collection"`
}

type LinkMapping struct {
	Parent     string `yaml:"parent" validate:"required"`
	Collection string `yaml:"collection" validate:"required"`
	Child      string `yaml:"child" validate:"required"`
}

var validate = validator.New()

// ParseDefinition decodes and validates a YAML definition. Unknown keys
// are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse source definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks struct tags and that every part refers to declared
// entities, known normalizers and valid key fields.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return NewDefinitionError(err.Error()).AddSource(d.Name)
	}

	entities := make(map[string]bool, len(d.Entities))
	for _, e := range d.Entities {
		part := fmt.Sprintf("entities[%s]", e.Name)
		if entities[e.Name] {
			return NewDefinitionError("duplicate entity name").AddSource(d.Name).AddPart(part)
		}
		entities[e.Name] = true

		organismSources := 0
		for _, s := range []string{e.Taxon, e.TaxonColumn, e.OrganismColumn} {
			if s != "" {
				organismSources++
			}
		}
		if organismSources > 1 {
			return NewDefinitionError("at most one of taxon, taxon_column and organism_column may be set").AddSource(d.Name).AddPart(part)
		}
		if err := checkNormalizers(e.Normalize); err != nil {
			return err.AddSource(d.Name).AddPart(part).AddField("normalize")
		}
		if err := checkFields(e.Attributes); err != nil {
			return err.AddSource(d.Name).AddPart(part)
		}
		for _, r := range e.References {
			if r.Entity == e.Name || !entities[r.Entity] {
				return NewDefinitionErrorf("references must name an entity declared earlier, not %q", r.Entity).AddSource(d.Name).AddPart(part).AddField("references")
			}
		}
	}

	ref := func(part, field, name string) error {
		if !entities[name] {
			return NewDefinitionErrorf("unknown entity %q", name).AddSource(d.Name).AddPart(part).AddField(field)
		}
		return nil
	}

	for i, p := range d.Pairs {
		part := fmt.Sprintf("pairs[%d]", i)
		if err := ref(part, "left", p.Left); err != nil {
			return err
		}
		if err := ref(part, "right", p.Right); err != nil {
			return err
		}
		if err := checkFields(p.Attributes); err != nil {
			return err.AddSource(d.Name).AddPart(part)
		}
	}

	for i, a := range d.Annotations {
		part := fmt.Sprintf("annotations[%d]", i)
		if err := ref(part, "subject", a.Subject); err != nil {
			return err
		}
		if err := ref(part, "term", a.Term); err != nil {
			return err
		}
		for _, r := range a.References {
			if err := ref(part, "references", r.Entity); err != nil {
				return err
			}
		}
		if _, err := annotation.ParseKeySpec(a.Key); err != nil {
			return NewDefinitionError(err.Error()).AddSource(d.Name).AddPart(part).AddField("key")
		}
		if err := checkFields(a.Attributes); err != nil {
			return err.AddSource(d.Name).AddPart(part)
		}
		if err := checkFields(a.EvidenceAttributes); err != nil {
			return err.AddSource(d.Name).AddPart(part)
		}
	}

	for i, c := range d.Children {
		part := fmt.Sprintf("children[%d]", i)
		if err := ref(part, "parent", c.Parent); err != nil {
			return err
		}
		for _, r := range c.References {
			if err := ref(part, "references", r.Entity); err != nil {
				return err
			}
		}
		if err := checkFields(c.Attributes); err != nil {
			return err.AddSource(d.Name).AddPart(part)
		}
	}

	for i, l := range d.Links {
		part := fmt.Sprintf("links[%d]", i)
		if err := ref(part, "parent", l.Parent); err != nil {
			return err
		}
		if err := ref(part, "child", l.Child); err != nil {
			return err
		}
	}

	return nil
}

// Source wraps r as a delimited row source laid out as the definition says.
func (d *Definition) Source(r io.ReadCloser) *rows.DelimitedSource {
	return rows.NewDelimitedSource(d.Name, r, d.Format, d.Columns)
}

func checkNormalizers(names []string) *DefinitionError {
	for _, name := range names {
		if _, ok := normalizers.Get(name); !ok {
			return NewDefinitionErrorf("unknown normalizer %q", name)
		}
	}
	return nil
}

func checkFields(fields []FieldMapping) *DefinitionError {
	for _, f := range fields {
		if f.Column == "" && f.Const == "" && f.Default == "" {
			return NewDefinitionError("one of column, const and default is required").AddField(f.Attribute)
		}
		if f.Column != "" && f.Const != "" {
			return NewDefinitionError("column and const are exclusive").AddField(f.Attribute)
		}
		if f.Format != "" && strings.Count(f.Format, "%s") != 1 {
			return NewDefinitionError("format must contain exactly one %s").AddField(f.Attribute)
		}
		if err := checkNormalizers(f.Normalize); err != nil {
			return err.AddField(f.Attribute)
		}
	}
	return nil
}
