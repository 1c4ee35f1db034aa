// Package store defines the write-only domain store the pipelines persist
// into, and the Writer that enforces its store-once contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/metrics"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

var (
	// ErrAlreadyStored is returned when an item is stored a second time.
	ErrAlreadyStored = errors.New("item already stored")
	// ErrParentNotStored is returned when a collection is written for a parent
	// that has no persistent identifier yet.
	ErrParentNotStored = errors.New("collection parent not stored")
)

// Store is an append-only target. Store assigns and returns a persistent id;
// StoreCollection attaches a to-many list to an already stored parent.
type Store interface {
	Store(ctx context.Context, item models.Snapshot) (int64, error)
	StoreCollection(ctx context.Context, parentID int64, name string, childIdentifiers []string) error
	Close(ctx context.Context) error
}

// Writer is the only path from pipelines to a Store.
type Writer struct {
	store   Store
	backend string
	logger  ectologger.Logger

	mu          sync.Mutex
	counts      map[string]int
	collections int
}

func NewWriter(s Store, backend string, logger ectologger.Logger) *Writer {
	return &Writer{
		store:   s,
		backend: backend,
		logger:  logger,
		counts:  make(map[string]int),
	}
}

// Store persists item once and records its persistent id on it.
func (w *Writer) Store(ctx context.Context, item *models.Item) error {
	if item.Stored() {
		return fmt.Errorf("%w: %s", ErrAlreadyStored, item.ID)
	}

	ctx, span := tracing.StartSpan(ctx, "store.Writer.Store")
	defer span.End()

	id, err := w.store.Store(ctx, item.Snapshot())
	if err != nil {
		w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"identifier": item.ID,
			"class":      item.Class,
		}).Error("Failed to store item")
		return fmt.Errorf("failed to store %s: %w", item.ID, err)
	}
	item.MarkStored(id)

	w.mu.Lock()
	w.counts[item.Class]++
	w.mu.Unlock()
	metrics.ItemsStoredTotal.WithLabelValues(w.backend, item.Class).Inc()

	return nil
}

// Ensure stores item unless it is already stored.
func (w *Writer) Ensure(ctx context.Context, item *models.Item) error {
	if item.Stored() {
		return nil
	}
	return w.Store(ctx, item)
}

// StoreCollection writes children as the named collection of parent.
func (w *Writer) StoreCollection(ctx context.Context, parent *models.Item, name string, children []*models.Item) error {
	if !parent.Stored() {
		return fmt.Errorf("%w: %s.%s", ErrParentNotStored, parent.ID, name)
	}

	ctx, span := tracing.StartSpan(ctx, "store.Writer.StoreCollection")
	defer span.End()

	if err := w.store.StoreCollection(ctx, parent.StoredID(), name, models.Identifiers(children)); err != nil {
		w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"parent":     parent.ID,
			"collection": name,
			"size":       len(children),
		}).Error("Failed to store collection")
		return fmt.Errorf("failed to store collection %s.%s: %w", parent.ID, name, err)
	}

	w.mu.Lock()
	w.collections++
	w.mu.Unlock()
	metrics.CollectionsStoredTotal.WithLabelValues(w.backend, name).Inc()

	return nil
}

// Counts returns the number of items stored per class.
func (w *Writer) Counts() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

func (w *Writer) CollectionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collections
}

func (w *Writer) Close(ctx context.Context) error {
	return w.store.Close(ctx)
}
