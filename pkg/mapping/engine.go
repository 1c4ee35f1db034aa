package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/annotation"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/normalizers"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/pipeline"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rowerror"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rows"
)

// Engine applies a Definition to rows. It holds no row state of its own;
// everything a run accumulates lives on the pipeline.Run.
type Engine struct {
	def     *Definition
	configs []annotation.Config
	// prefixes holds each entity's prefix_index keys, longest first
	prefixes map[string][]string
}

// resolved is the outcome of one entity mapping for one row.
type resolved struct {
	items []*models.Item
	key   string
	err   error
}

func NewEngine(def *Definition) (*Engine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{def: def, prefixes: make(map[string][]string)}
	for _, m := range def.Entities {
		if len(m.PrefixIndex) > 0 {
			e.prefixes[m.Name] = sortedPrefixes(m.PrefixIndex)
		}
	}
	for _, a := range def.Annotations {
		spec, err := annotation.ParseKeySpec(a.Key)
		if err != nil {
			return nil, err
		}
		e.configs = append(e.configs, annotation.Config{
			AnnotationClass:    a.Class,
			SubjectReference:   a.SubjectReference,
			TermReference:      a.TermReference,
			SubjectCollection:  a.SubjectCollection,
			EvidenceClass:      a.EvidenceClass,
			EvidenceCollection: a.EvidenceCollection,
			CodeClass:          a.CodeClass,
			CodeAttribute:      a.CodeAttribute,
			CodeReference:      a.CodeReference,
			PublicationsOn:     annotation.PublicationTarget(a.PublicationsOn),
			Key:                spec,
			Identity:           annotation.Identity(a.Identity),
		})
	}
	return e, nil
}

// sortedPrefixes orders prefixes so the most specific one matches first.
func sortedPrefixes(prefixIndex map[string]string) []string {
	prefixes := make([]string, 0, len(prefixIndex))
	for prefix := range prefixIndex {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return prefixes
}

func (e *Engine) Definition() *Definition {
	return e.def
}

// PipelineOptions returns the pipeline options the definition implies.
func (e *Engine) PipelineOptions() []pipeline.Option {
	if len(e.def.Sentinels) == 0 {
		return nil
	}
	return []pipeline.Option{pipeline.WithSentinels(e.def.Sentinels...)}
}

// HandleRow maps one row. A narrow row is fatal; otherwise each part of the
// definition is applied independently and their recoverable errors joined.
func (e *Engine) HandleRow(_ context.Context, run *pipeline.Run, row rows.Row) error {
	if row.Len() < e.def.MinFields {
		return rowerror.Structural(e.def.MinFields, row.Len())
	}

	dataSet := e.dataSet(run)
	entities := make(map[string]resolved, len(e.def.Entities))
	for _, m := range e.def.Entities {
		entities[m.Name] = e.resolveEntity(run, row, m, entities, dataSet)
	}

	var errs []error
	for i, p := range e.def.Pairs {
		errs = append(errs, e.applyPair(run, row, i, p, entities, dataSet))
	}
	for i, a := range e.def.Annotations {
		if err := e.applyAnnotation(run, row, i, a, entities, dataSet); err != nil {
			if rowerror.IsFatal(err) {
				return err
			}
			errs = append(errs, err)
		}
	}
	for _, c := range e.def.Children {
		errs = append(errs, e.applyChild(run, row, c, entities, dataSet))
	}
	for _, l := range e.def.Links {
		errs = append(errs, e.applyLink(run, l, entities))
	}

	return rowerror.Join(errs...)
}

func (e *Engine) dataSet(run *pipeline.Run) *models.Item {
	if e.def.DataSetTitle == "" {
		return nil
	}
	var source *models.Item
	if e.def.DataSource != "" {
		source = run.Shared.DataSource(e.def.DataSource)
	}
	return run.Shared.DataSet(e.def.DataSetTitle, source)
}

func (e *Engine) resolveEntity(run *pipeline.Run, row rows.Row, m EntityMapping, entities map[string]resolved, dataSet *models.Item) resolved {
	raw := e.entityKey(row, m)
	res := resolved{key: raw}

	values := []string{raw}
	if m.Split != "" {
		values = normalizers.SplitOn(raw, m.Split)
	}

	for _, value := range values {
		value = normalizers.ApplyChain(value, m.Normalize...)
		index := m.Index
		for _, prefix := range m.StripPrefixes {
			value = strings.TrimPrefix(value, prefix)
		}
		for _, prefix := range e.prefixes[m.Name] {
			if strings.HasPrefix(value, prefix) {
				index = m.PrefixIndex[prefix]
				break
			}
		}
		if e.sentinel(value) {
			continue
		}

		organism, err := e.organism(run, row, m)
		if err != nil {
			res.err = err
			return res
		}

		var item *models.Item
		if m.HiddenKey {
			item = run.Entities.ResolveWith(m.Class, index, value, func(f *models.Factory, class, _ string) *models.Item {
				return f.New(class)
			})
		} else {
			item = run.Entities.Resolve(m.Class, index, value)
		}
		if item == nil {
			continue
		}
		item.SetReference("organism", organism)
		e.setAttributes(item, row, m.Attributes)
		for _, r := range m.References {
			if targets := entities[r.Entity].items; len(targets) > 0 {
				item.SetReference(r.Name, targets[0])
			}
		}
		for _, pub := range e.publications(run, row, m.PublicationColumn, m.PublicationXrefColumn, m.PublicationSplit) {
			if m.PublicationAs == "reference" {
				item.SetReference("publication", pub)
			} else {
				item.AddToCollection("publications", pub)
			}
		}
		if dataSet != nil {
			item.AddToCollection("dataSets", dataSet)
		}
		res.items = append(res.items, item)
	}
	return res
}

// entityKey reads the raw key of m. A composite key is empty unless every
// part is present.
func (e *Engine) entityKey(row rows.Row, m EntityMapping) string {
	if len(m.KeyColumns) == 0 {
		return strings.TrimSpace(row.Get(m.Column))
	}
	parts := make([]string, 0, len(m.KeyColumns))
	for _, c := range m.KeyColumns {
		v := e.column(row, c)
		if v == "" {
			return ""
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, orDefault(m.KeySeparator, "|"))
}

func (e *Engine) organism(run *pipeline.Run, row rows.Row, m EntityMapping) (*models.Item, error) {
	switch {
	case m.Taxon != "":
		return run.Shared.Organism(m.Taxon), nil
	case m.TaxonColumn != "":
		return run.Shared.Organism(normalizers.ParseTaxonID(row.Get(m.TaxonColumn))), nil
	case m.OrganismColumn != "":
		name := strings.TrimSpace(row.Get(m.OrganismColumn))
		if e.sentinel(name) {
			return nil, nil
		}
		taxon, ok := run.Shared.TaxonByName(name)
		if !ok {
			return nil, rowerror.Unresolvable("organism", name)
		}
		return run.Shared.Organism(taxon), nil
	}
	return nil, nil
}

// require returns the items of a non-optional entity or an unresolvable
// error naming its key.
func (e *Engine) require(entities map[string]resolved, name string) ([]*models.Item, error) {
	res := entities[name]
	if res.err != nil {
		return nil, res.err
	}
	if len(res.items) == 0 {
		return nil, rowerror.Unresolvable(name, res.key)
	}
	return res.items, nil
}

// absentOptional reports an optional entity that resolved to nothing.
func (e *Engine) absentOptional(entities map[string]resolved, name string) bool {
	res := entities[name]
	return res.err == nil && len(res.items) == 0 && e.optional(name)
}

func (e *Engine) optional(name string) bool {
	for _, m := range e.def.Entities {
		if m.Name == name {
			return m.Optional
		}
	}
	return false
}

func (e *Engine) applyPair(run *pipeline.Run, row rows.Row, n int, p PairMapping, entities map[string]resolved, dataSet *models.Item) error {
	if e.absentOptional(entities, p.Left) || e.absentOptional(entities, p.Right) {
		return nil
	}
	lefts, err := e.require(entities, p.Left)
	if err != nil {
		return err
	}
	rights, err := e.require(entities, p.Right)
	if err != nil {
		return err
	}

	seen := pipeline.Value(run, fmt.Sprintf("pairs[%d]", n), func() map[[2]string]bool {
		return make(map[[2]string]bool)
	})
	create := func(left, right *models.Item) {
		if p.SkipSelf && left == right {
			return
		}
		if p.Dedup {
			pair := [2]string{left.ID, right.ID}
			if seen[pair] {
				return
			}
			seen[pair] = true
		}

		rec := run.NewItem(p.Class)
		rec.SetReference(orDefault(p.LeftReference, "gene"), left)
		rec.SetReference(orDefault(p.RightReference, "homologue"), right)
		e.setAttributes(rec, row, p.Attributes)
		if p.PublicationColumn != "" {
			rec.AddToCollection("publications", e.publication(run, row, p.PublicationColumn))
		}
		if dataSet != nil {
			rec.AddToCollection("dataSets", dataSet)
		}
		if p.Collection != "" {
			run.Collections.Add(left, p.Collection, rec)
		}
	}

	for _, left := range lefts {
		for _, right := range rights {
			create(left, right)
			if p.Mirror {
				create(right, left)
			}
		}
	}
	return nil
}

func (e *Engine) applyAnnotation(run *pipeline.Run, row rows.Row, n int, a AnnotationMapping, entities map[string]resolved, dataSet *models.Item) error {
	if e.absentOptional(entities, a.Subject) || e.absentOptional(entities, a.Term) {
		return nil
	}
	acc := run.Accumulator(fmt.Sprintf("annotations[%d]", n), e.configs[n])
	if strings.TrimSpace(row.Get(a.CodeColumn)) == "" {
		return rowerror.MissingField(a.CodeColumn)
	}

	subjects := entities[a.Subject]
	terms := entities[a.Term]
	if subjects.err != nil {
		return subjects.err
	}
	if terms.err != nil {
		return terms.err
	}
	// An absent subject or term still goes through Merge, which reports it.
	subjectItems := subjects.items
	if len(subjectItems) == 0 {
		subjectItems = []*models.Item{nil}
	}
	termItems := terms.items
	if len(termItems) == 0 {
		termItems = []*models.Item{nil}
	}

	pubKey := ""
	var pub *models.Item
	if a.PublicationColumn != "" {
		pubMedID, xref := normalizers.PublicationRef(row.Get(a.PublicationColumn))
		pubKey = normalizers.PublicationKey(pubMedID, xref)
		pub = run.Shared.PublicationRef(pubMedID, xref)
	}

	qualifier := e.column(row, a.QualifierColumn)
	extension := e.column(row, a.ExtensionColumn)
	attrs := e.attributes(row, a.Attributes)
	if qualifier != "" {
		attrs = append(attrs, models.Attribute{Name: "qualifier", Value: qualifier})
	}
	if extension != "" {
		attrs = append(attrs, models.Attribute{Name: "annotationExtension", Value: extension})
	}

	refs := []annotation.Reference{}
	for _, r := range a.References {
		items := entities[r.Entity].items
		if len(items) == 0 {
			if e.optional(r.Entity) {
				continue
			}
			_, err := e.require(entities, r.Entity)
			return err
		}
		refs = append(refs, annotation.Reference{Name: r.Name, Target: items[0]})
	}
	if a.DataSourceColumn != "" {
		code := e.column(row, a.DataSourceColumn)
		name := code
		if mapped, ok := a.DataSources[code]; ok {
			name = mapped
		}
		refs = append(refs, annotation.Reference{Name: "dataSource", Target: run.Shared.DataSource(name)})
	}

	with := e.column(row, a.WithColumn)
	evAttrs := e.attributes(row, a.EvidenceAttributes)
	if with != "" {
		evAttrs = append(evAttrs, models.Attribute{Name: orDefault(a.WithAttribute, "withText"), Value: with})
	}

	var errs []error
	for _, subject := range subjectItems {
		for _, term := range termItems {
			key := annotation.Key{
				Subject:     keyOf(subject, subjects.key),
				Term:        keyOf(term, terms.key),
				Qualifier:   qualifier,
				Context:     e.column(row, a.ContextColumn),
				Publication: pubKey,
				Extension:   extension,
			}
			rec, err := acc.Merge(annotation.Input{
				Key:        key,
				Subject:    subject,
				Term:       term,
				Attributes: attrs,
				References: refs,
				Evidence: annotation.Evidence{
					Code:        row.Get(a.CodeColumn),
					Type:        e.column(row, a.TypeColumn),
					With:        with,
					Publication: pub,
					Attributes:  evAttrs,
				},
			})
			if err != nil {
				if rowerror.IsFatal(err) {
					return err
				}
				errs = append(errs, err)
				continue
			}
			if dataSet != nil {
				rec.Annotation.AddToCollection("dataSets", dataSet)
			}
		}
	}
	return rowerror.Join(errs...)
}

func (e *Engine) applyChild(run *pipeline.Run, row rows.Row, c ChildMapping, entities map[string]resolved, dataSet *models.Item) error {
	parents, err := e.require(entities, c.Parent)
	if err != nil {
		return err
	}

	refs := make(map[string]*models.Item, len(c.References))
	for _, r := range c.References {
		items := entities[r.Entity].items
		if len(items) == 0 {
			if e.optional(r.Entity) {
				continue
			}
			_, err := e.require(entities, r.Entity)
			return err
		}
		refs[r.Name] = items[0]
	}

	var pub *models.Item
	if c.PublicationColumn != "" {
		pub = e.publication(run, row, c.PublicationColumn)
	}

	for _, parent := range parents {
		child := run.NewItem(c.Class)
		if c.ParentReference != "" {
			child.SetReference(c.ParentReference, parent)
		}
		for _, r := range c.References {
			child.SetReference(r.Name, refs[r.Name])
		}
		e.setAttributes(child, row, c.Attributes)
		if pub != nil {
			if c.PublicationAs == "reference" {
				child.SetReference("publication", pub)
			} else {
				child.AddToCollection("publications", pub)
			}
		}
		if dataSet != nil {
			child.AddToCollection("dataSets", dataSet)
		}
		run.Collections.Add(parent, c.Collection, child)
	}
	return nil
}

func (e *Engine) applyLink(run *pipeline.Run, l LinkMapping, entities map[string]resolved) error {
	if e.absentOptional(entities, l.Parent) || e.absentOptional(entities, l.Child) {
		return nil
	}
	parents, err := e.require(entities, l.Parent)
	if err != nil {
		return err
	}
	children, err := e.require(entities, l.Child)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		for _, child := range children {
			run.Collections.Add(parent, l.Collection, child)
		}
	}
	return nil
}

func (e *Engine) publication(run *pipeline.Run, row rows.Row, column string) *models.Item {
	return run.Shared.PublicationRef(normalizers.PublicationRef(row.Get(column)))
}

// publications resolves every reference cited in column. A cross-reference
// column fills in the xref when the reference itself has none.
func (e *Engine) publications(run *pipeline.Run, row rows.Row, column, xrefColumn, split string) []*models.Item {
	if column == "" {
		return nil
	}
	values := []string{row.Get(column)}
	if split != "" {
		values = normalizers.SplitOn(row.Get(column), split)
	}

	var pubs []*models.Item
	for _, v := range values {
		pubMedID, xref := normalizers.PublicationRef(v)
		if xref == "" && len(values) == 1 {
			xref = e.column(row, xrefColumn)
		}
		if pub := run.Shared.PublicationRef(pubMedID, xref); pub != nil {
			pubs = append(pubs, pub)
		}
	}
	return pubs
}

// column reads a trimmed column value, treating sentinels as empty.
func (e *Engine) column(row rows.Row, name string) string {
	if name == "" {
		return ""
	}
	v := strings.TrimSpace(row.Get(name))
	if e.sentinel(v) {
		return ""
	}
	return v
}

func (e *Engine) sentinel(v string) bool {
	return normalizers.IsSentinel(v, e.def.Sentinels...)
}

func (e *Engine) value(row rows.Row, f FieldMapping) string {
	v := f.Const
	if f.Column != "" {
		v = row.Get(f.Column)
	}
	v = strings.TrimSpace(normalizers.ApplyChain(v, f.Normalize...))
	if e.sentinel(v) {
		v = f.Default
	}
	if v != "" && f.Format != "" {
		v = fmt.Sprintf(f.Format, v)
	}
	return v
}

func (e *Engine) attributes(row rows.Row, fields []FieldMapping) []models.Attribute {
	out := make([]models.Attribute, 0, len(fields))
	for _, f := range fields {
		if v := e.value(row, f); v != "" {
			out = append(out, models.Attribute{Name: f.Attribute, Value: v})
		}
	}
	return out
}

func (e *Engine) setAttributes(item *models.Item, row rows.Row, fields []FieldMapping) {
	for _, attr := range e.attributes(row, fields) {
		item.SetAttribute(attr.Name, attr.Value)
	}
}

func keyOf(item *models.Item, raw string) string {
	if item != nil {
		return item.Key
	}
	return raw
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
