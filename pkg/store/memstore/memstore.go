// Package memstore is an in-memory Store used for dry runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
)

type Record struct {
	ID int64
	models.Snapshot
}

type CollectionWrite struct {
	ParentID         int64
	Name             string
	ChildIdentifiers []string
}

type Store struct {
	mu          sync.RWMutex
	nextID      int64
	records     []Record
	byID        map[int64]int
	byIdent     map[string]int
	collections []CollectionWrite
	closed      bool
}

func New() *Store {
	return &Store{
		byID:    make(map[int64]int),
		byIdent: make(map[string]int),
	}
}

func (s *Store) Store(_ context.Context, item models.Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if _, ok := s.byIdent[item.Identifier]; ok {
		return 0, fmt.Errorf("identifier %s written twice", item.Identifier)
	}

	s.nextID++
	s.records = append(s.records, Record{ID: s.nextID, Snapshot: item})
	s.byID[s.nextID] = len(s.records) - 1
	s.byIdent[item.Identifier] = len(s.records) - 1
	return s.nextID, nil
}

func (s *Store) StoreCollection(_ context.Context, parentID int64, name string, childIdentifiers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if _, ok := s.byID[parentID]; !ok {
		return fmt.Errorf("no stored item with id %d", parentID)
	}

	children := make([]string, len(childIdentifiers))
	copy(children, childIdentifiers)
	s.collections = append(s.collections, CollectionWrite{ParentID: parentID, Name: name, ChildIdentifiers: children})
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns every stored item in store order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) ByClass(class string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the first record of class whose attribute equals value.
func (s *Store) Find(class, attribute, value string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Class == class && r.Attributes[attribute] == value {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) Get(identifier string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byIdent[identifier]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

func (s *Store) Collections() []CollectionWrite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CollectionWrite, len(s.collections))
	copy(out, s.collections)
	return out
}

// CollectionsOf returns the collection writes for the item with identifier.
func (s *Store) CollectionsOf(identifier string) []CollectionWrite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byIdent[identifier]
	if !ok {
		return nil
	}
	id := s.records[i].ID
	var out []CollectionWrite
	for _, c := range s.collections {
		if c.ParentID == id {
			out = append(out, c)
		}
	}
	return out
}

// Position returns the store order of an identifier, or -1.
func (s *Store) Position(identifier string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byIdent[identifier]
	if !ok {
		return -1
	}
	return i
}
