// Package resolver maps external keys to canonical items so that every
// appearance of the same identifier in a run mutates one shared item.
package resolver

import (
	"strings"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/normalizers"
)

// Build constructs a new item for a key that has not been seen before.
type Build func(factory *models.Factory, class, key string) *models.Item

type indexKey struct {
	class string
	index string
}

// Resolver holds one set of items per class, reachable through any number
// of named key indexes. It is not safe for concurrent use.
type Resolver struct {
	factory   *models.Factory
	sentinels []string
	indexes   map[indexKey]map[string]*models.Item
	items     []*models.Item
}

type Option func(*Resolver)

// WithSentinels replaces the default absent-value tokens.
func WithSentinels(sentinels ...string) Option {
	return func(r *Resolver) {
		r.sentinels = sentinels
	}
}

func New(factory *models.Factory, opts ...Option) *Resolver {
	r := &Resolver{
		factory: factory,
		indexes: make(map[indexKey]map[string]*models.Item),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the item of class registered under key in index, creating
// it on first sight. New items get the key as the attribute named after the
// index. Sentinel and empty keys resolve to nil.
func (r *Resolver) Resolve(class, index, key string) *models.Item {
	return r.ResolveWith(class, index, key, nil)
}

// ResolveWith is Resolve with a custom constructor for unseen keys.
func (r *Resolver) ResolveWith(class, index, key string, build Build) *models.Item {
	key = strings.TrimSpace(key)
	if normalizers.IsSentinel(key, r.sentinels...) {
		return nil
	}

	idx := r.index(class, index)
	if item, ok := idx[key]; ok {
		return item
	}

	var item *models.Item
	if build != nil {
		item = build(r.factory, class, key)
	} else {
		item = r.factory.New(class)
		item.SetAttribute(index, key)
	}
	if item.Key == "" {
		item.Key = key
	}

	idx[key] = item
	r.items = append(r.items, item)
	return item
}

// Alias registers an existing item under another key. An alias that already
// points at a different item is left alone and false is returned.
func (r *Resolver) Alias(class, index, key string, item *models.Item) bool {
	key = strings.TrimSpace(key)
	if item == nil || normalizers.IsSentinel(key, r.sentinels...) {
		return false
	}
	idx := r.index(class, index)
	if existing, ok := idx[key]; ok {
		return existing == item
	}
	idx[key] = item
	return true
}

// Lookup returns an item without creating it.
func (r *Resolver) Lookup(class, index, key string) (*models.Item, bool) {
	idx, ok := r.indexes[indexKey{class: class, index: index}]
	if !ok {
		return nil, false
	}
	item, ok := idx[strings.TrimSpace(key)]
	return item, ok
}

// Entities returns every item created by this resolver in creation order.
func (r *Resolver) Entities() []*models.Item {
	out := make([]*models.Item, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Resolver) Len() int {
	return len(r.items)
}

func (r *Resolver) Factory() *models.Factory {
	return r.factory
}

func (r *Resolver) index(class, index string) map[string]*models.Item {
	k := indexKey{class: class, index: index}
	idx, ok := r.indexes[k]
	if !ok {
		idx = make(map[string]*models.Item)
		r.indexes[k] = idx
	}
	return idx
}
