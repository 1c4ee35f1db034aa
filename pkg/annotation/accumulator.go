// Package annotation merges rows describing the same annotation fact into a
// single annotation carrying one evidence item per distinct evidence.
package annotation

import (
	"context"
	"errors"
	"strings"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/collection"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rowerror"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

// ErrFinalized is returned by Merge once the accumulator has been written.
var ErrFinalized = errors.New("annotation accumulator already finalized")

type PublicationTarget string

const (
	PublicationsOnEvidence   PublicationTarget = "evidence"
	PublicationsOnAnnotation PublicationTarget = "annotation"
	PublicationsOnBoth       PublicationTarget = "both"
)

type Config struct {
	AnnotationClass  string
	SubjectReference string
	TermReference    string
	// SubjectCollection, when set, lists the annotation on its subject.
	SubjectCollection string

	EvidenceClass      string
	EvidenceCollection string
	// CodeClass items are shared per code and referenced from evidence
	// through CodeReference. Without a CodeClass the code is stored as the
	// CodeAttribute of the evidence itself.
	CodeClass     string
	CodeAttribute string
	CodeReference string

	PublicationsOn PublicationTarget
	Key            KeySpec
	Identity       Identity
}

func (c Config) withDefaults() Config {
	if c.SubjectReference == "" {
		c.SubjectReference = "subject"
	}
	if c.TermReference == "" {
		c.TermReference = "ontologyTerm"
	}
	if c.EvidenceCollection == "" {
		c.EvidenceCollection = "evidence"
	}
	if c.CodeAttribute == "" {
		c.CodeAttribute = "code"
	}
	if c.CodeReference == "" {
		c.CodeReference = "code"
	}
	if c.PublicationsOn == "" {
		c.PublicationsOn = PublicationsOnEvidence
	}
	if len(c.Key) == 0 {
		c.Key = DefaultKeySpec
	}
	if c.Identity == "" {
		c.Identity = IdentityCode
	}
	return c
}

// Evidence is one row's contribution of evidence.
type Evidence struct {
	Code        string
	Type        string
	With        string
	Publication *models.Item
	Attributes  []models.Attribute
}

// Input is one row's contribution to an annotation.
type Input struct {
	Key        Key
	Subject    *models.Item
	Term       *models.Item
	Attributes []models.Attribute
	References []Reference
	Evidence   Evidence
}

type Reference struct {
	Name   string
	Target *models.Item
}

type EvidenceItem struct {
	Identity string
	Code     string
	Item     *models.Item
}

type Record struct {
	Key        Key
	Annotation *models.Item
	Evidence   []*EvidenceItem

	byIdentity map[string]*EvidenceItem
}

// Accumulator owns the annotation records of one pipeline run.
type Accumulator struct {
	cfg         Config
	factory     *models.Factory
	collections *collection.Builder

	records   map[Key]*Record
	order     []*Record
	codes     map[string]*models.Item
	codeOrder []*models.Item
	finalized bool
}

func New(cfg Config, factory *models.Factory, collections *collection.Builder) *Accumulator {
	return &Accumulator{
		cfg:         cfg.withDefaults(),
		factory:     factory,
		collections: collections,
		records:     make(map[Key]*Record),
		codes:       make(map[string]*models.Item),
	}
}

// Merge folds one row into the accumulator. The first row for a key creates
// the annotation; later rows add publications to an existing evidence item
// with the same identity or add a new evidence item.
func (a *Accumulator) Merge(in Input) (*Record, error) {
	if a.finalized {
		return nil, ErrFinalized
	}

	ev := in.Evidence
	ev.Code = strings.TrimSpace(ev.Code)
	if ev.Code == "" {
		return nil, rowerror.MissingField("evidence_code")
	}
	if in.Subject == nil {
		return nil, rowerror.Unresolvable(string(FieldSubject), in.Key.Subject)
	}
	if in.Term == nil {
		return nil, rowerror.Unresolvable(string(FieldTerm), in.Key.Term)
	}

	key := a.cfg.Key.Project(in.Key)
	rec, ok := a.records[key]
	if !ok {
		rec = a.newRecord(key, in)
	}
	for _, attr := range in.Attributes {
		rec.Annotation.SetAttribute(attr.Name, attr.Value)
	}
	for _, ref := range in.References {
		rec.Annotation.SetReference(ref.Name, ref.Target)
	}

	identity := a.cfg.Identity.of(ev)
	item, ok := rec.byIdentity[identity]
	if !ok {
		item = a.newEvidence(rec, identity, ev)
	}
	for _, attr := range ev.Attributes {
		item.Item.SetAttribute(attr.Name, attr.Value)
	}

	if ev.Publication != nil {
		switch a.cfg.PublicationsOn {
		case PublicationsOnAnnotation:
			rec.Annotation.AddToCollection("publications", ev.Publication)
		case PublicationsOnBoth:
			rec.Annotation.AddToCollection("publications", ev.Publication)
			item.Item.AddToCollection("publications", ev.Publication)
		default:
			item.Item.AddToCollection("publications", ev.Publication)
		}
	}

	return rec, nil
}

func (a *Accumulator) newRecord(key Key, in Input) *Record {
	ann := a.factory.New(a.cfg.AnnotationClass)
	ann.SetReference(a.cfg.SubjectReference, in.Subject)
	ann.SetReference(a.cfg.TermReference, in.Term)

	rec := &Record{
		Key:        key,
		Annotation: ann,
		byIdentity: make(map[string]*EvidenceItem),
	}
	a.records[key] = rec
	a.order = append(a.order, rec)

	if a.cfg.SubjectCollection != "" {
		a.collections.Add(in.Subject, a.cfg.SubjectCollection, ann)
	}
	return rec
}

func (a *Accumulator) newEvidence(rec *Record, identity string, ev Evidence) *EvidenceItem {
	item := a.factory.New(a.cfg.EvidenceClass)
	if a.cfg.CodeClass != "" {
		item.SetReference(a.cfg.CodeReference, a.code(ev.Code))
	} else {
		item.SetAttribute(a.cfg.CodeAttribute, ev.Code)
	}

	e := &EvidenceItem{Identity: identity, Code: ev.Code, Item: item}
	rec.byIdentity[identity] = e
	rec.Evidence = append(rec.Evidence, e)
	a.collections.Add(rec.Annotation, a.cfg.EvidenceCollection, item)
	return e
}

func (a *Accumulator) code(code string) *models.Item {
	if item, ok := a.codes[code]; ok {
		return item
	}
	item := a.factory.New(a.cfg.CodeClass)
	item.Key = code
	item.SetAttribute(a.cfg.CodeAttribute, code)
	a.codes[code] = item
	a.codeOrder = append(a.codeOrder, item)
	return item
}

// Records returns the annotation records in first-seen order.
func (a *Accumulator) Records() []*Record {
	out := make([]*Record, len(a.order))
	copy(out, a.order)
	return out
}

func (a *Accumulator) Len() int {
	return len(a.order)
}

// Finalize stores the evidence codes, every evidence item and every
// annotation once. Collections linking them are left to the collection
// builder.
func (a *Accumulator) Finalize(ctx context.Context, w *store.Writer) error {
	ctx, span := tracing.StartSpan(ctx, "annotation.Accumulator.Finalize")
	defer span.End()

	if a.finalized {
		return ErrFinalized
	}
	a.finalized = true

	for _, code := range a.codeOrder {
		if err := w.Ensure(ctx, code); err != nil {
			return err
		}
	}
	for _, rec := range a.order {
		for _, ev := range rec.Evidence {
			if err := w.Store(ctx, ev.Item); err != nil {
				return err
			}
		}
		if err := w.Store(ctx, rec.Annotation); err != nil {
			return err
		}
	}
	return nil
}

// Publications returns the publications cited by an evidence item.
func (e *EvidenceItem) Publications() []*models.Item {
	return e.Item.Collection("publications")
}
