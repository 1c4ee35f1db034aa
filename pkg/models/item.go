package models

import (
	"fmt"
	"sync/atomic"
)

// ConflictObserver is notified when a write is rejected because the
// attribute or reference already holds a different value, or because the
// item has already been stored.
type ConflictObserver interface {
	AttributeConflict(item *Item, name, kept, rejected string)
}

// ConflictFunc adapts a function to ConflictObserver.
type ConflictFunc func(item *Item, name, kept, rejected string)

func (f ConflictFunc) AttributeConflict(item *Item, name, kept, rejected string) {
	f(item, name, kept, rejected)
}

// Item is one object of the target data model: a gene, a publication, an
// annotation, an evidence record. Writes follow first-write-wins.
type Item struct {
	ID    string
	Class string
	// Key is the external key the item was first resolved by, if any.
	Key string

	attrNames []string
	attrs     map[string]string

	refNames []string
	refs     map[string]*Item

	collNames   []string
	collections map[string][]*Item

	observer ConflictObserver
	stored   bool
	storedID int64
}

// SetAttribute sets name to value unless value is empty or the attribute
// already holds a value. It returns true when the attribute now holds value.
// Stored items are frozen: writes that would change them are rejected.
func (i *Item) SetAttribute(name, value string) bool {
	if value == "" {
		return false
	}
	existing, ok := i.attrs[name]
	if i.stored {
		if existing != value {
			i.reject(name, existing, value)
		}
		return false
	}
	if ok {
		if existing != value {
			i.reject(name, existing, value)
		}
		return existing == value
	}
	if i.attrs == nil {
		i.attrs = make(map[string]string)
	}
	i.attrs[name] = value
	i.attrNames = append(i.attrNames, name)
	return true
}

func (i *Item) Attribute(name string) (string, bool) {
	v, ok := i.attrs[name]
	return v, ok
}

// Attributes returns the attributes in the order they were first set.
func (i *Item) Attributes() []Attribute {
	out := make([]Attribute, 0, len(i.attrNames))
	for _, name := range i.attrNames {
		out = append(out, Attribute{Name: name, Value: i.attrs[name]})
	}
	return out
}

// SetReference points name at target. Nil targets are ignored and an
// existing reference to a different item is kept.
func (i *Item) SetReference(name string, target *Item) bool {
	if target == nil {
		return false
	}
	existing, ok := i.refs[name]
	if i.stored {
		if existing != target {
			i.reject(name, itemID(existing), target.ID)
		}
		return false
	}
	if ok {
		if existing != target {
			i.reject(name, existing.ID, target.ID)
		}
		return existing == target
	}
	if i.refs == nil {
		i.refs = make(map[string]*Item)
	}
	i.refs[name] = target
	i.refNames = append(i.refNames, name)
	return true
}

func (i *Item) Reference(name string) *Item {
	return i.refs[name]
}

// AddToCollection appends target to an inline collection that is written
// together with the item. A target already present is not added twice.
func (i *Item) AddToCollection(name string, target *Item) bool {
	if target == nil {
		return false
	}
	list, ok := i.collections[name]
	for _, existing := range list {
		if existing == target {
			return false
		}
	}
	if i.stored {
		i.reject(name, "", target.ID)
		return false
	}
	if i.collections == nil {
		i.collections = make(map[string][]*Item)
	}
	if !ok {
		i.collNames = append(i.collNames, name)
	}
	i.collections[name] = append(list, target)
	return true
}

func (i *Item) Collection(name string) []*Item {
	return i.collections[name]
}

func (i *Item) Stored() bool {
	return i.stored
}

func (i *Item) StoredID() int64 {
	return i.storedID
}

// MarkStored records the persistent identifier assigned by the store.
func (i *Item) MarkStored(id int64) {
	i.stored = true
	i.storedID = id
}

func (i *Item) reject(name, kept, rejected string) {
	if i.observer != nil {
		i.observer.AttributeConflict(i, name, kept, rejected)
	}
}

func itemID(i *Item) string {
	if i == nil {
		return ""
	}
	return i.ID
}

func (i *Item) String() string {
	if i.Key != "" {
		return fmt.Sprintf("%s(%s)", i.ID, i.Key)
	}
	return i.ID
}

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Factory creates items with identifiers that are unique for the process.
type Factory struct {
	observer ConflictObserver
}

var itemSequence atomic.Int64

func NewFactory(observer ConflictObserver) *Factory {
	return &Factory{observer: observer}
}

func (f *Factory) New(class string) *Item {
	n := itemSequence.Add(1)
	return &Item{
		ID:       fmt.Sprintf("%s_%d", class, n),
		Class:    class,
		observer: f.observer,
	}
}
