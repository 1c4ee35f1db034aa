// Package collection buffers to-many collections until their parents can be
// stored, then writes each collection in one bulk call.
package collection

import (
	"context"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

type pending struct {
	parent *models.Item
	names  []string
	lists  map[string][]*models.Item
	seen   map[string]map[*models.Item]bool
}

// Builder accumulates child lists per parent in first-seen parent order.
type Builder struct {
	parents map[*models.Item]*pending
	order   []*pending
}

func NewBuilder() *Builder {
	return &Builder{parents: make(map[*models.Item]*pending)}
}

// Add appends child to the named collection of parent. Nil parents or
// children are ignored, and a child is listed at most once per collection.
func (b *Builder) Add(parent *models.Item, name string, child *models.Item) {
	if parent == nil || child == nil {
		return
	}
	p, ok := b.parents[parent]
	if !ok {
		p = &pending{
			parent: parent,
			lists:  make(map[string][]*models.Item),
			seen:   make(map[string]map[*models.Item]bool),
		}
		b.parents[parent] = p
		b.order = append(b.order, p)
	}
	if p.seen[name] == nil {
		p.seen[name] = make(map[*models.Item]bool)
		p.names = append(p.names, name)
	}
	if p.seen[name][child] {
		return
	}
	p.seen[name][child] = true
	p.lists[name] = append(p.lists[name], child)
}

// Pending returns the buffered children of one collection.
func (b *Builder) Pending(parent *models.Item, name string) []*models.Item {
	p, ok := b.parents[parent]
	if !ok {
		return nil
	}
	return p.lists[name]
}

// Len returns the number of parents with buffered collections.
func (b *Builder) Len() int {
	return len(b.order)
}

// FlushAll writes every buffered collection and empties the builder. Each
// child and then the parent is stored first when not stored yet, so a
// collection is never written before its parent has a persistent id.
func (b *Builder) FlushAll(ctx context.Context, w *store.Writer) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "collection.Builder.FlushAll")
	defer span.End()

	written := 0
	for _, p := range b.order {
		for _, name := range p.names {
			children := p.lists[name]
			if len(children) == 0 {
				continue
			}
			for _, child := range children {
				if err := w.Ensure(ctx, child); err != nil {
					return written, err
				}
			}
			if err := w.Ensure(ctx, p.parent); err != nil {
				return written, err
			}
			if err := w.StoreCollection(ctx, p.parent, name, children); err != nil {
				return written, err
			}
			written++
		}
	}

	b.parents = make(map[*models.Item]*pending)
	b.order = nil
	return written, nil
}
