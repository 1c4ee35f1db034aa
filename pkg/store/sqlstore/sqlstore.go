// Package sqlstore persists items into the items and item_collections
// tables of a Postgres or SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/database"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/fingerprint"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

const (
	itemsTable       = "items"
	collectionsTable = "item_collections"

	// collectionChunkSize keeps each insert under SQLite's and Postgres's
	// bind parameter limits at four parameters per row.
	collectionChunkSize = 500
)

var ErrNotFound = errors.New("item not found")

// Row is one stored item as read back from the items table.
type Row struct {
	ID          int64                               `db:"id"`
	RunID       string                              `db:"run_id"`
	Identifier  string                              `db:"identifier"`
	Class       string                              `db:"class"`
	Attributes  database.JSONB[map[string]string]   `db:"attributes"`
	References  database.JSONB[map[string]string]   `db:"refs"`
	Collections database.JSONB[map[string][]string] `db:"collections"`
	Fingerprint string                              `db:"fingerprint"`
}

// Snapshot rebuilds the stored snapshot. Empty JSON objects read back as
// nil maps.
func (r Row) Snapshot() models.Snapshot {
	s := models.Snapshot{
		Identifier: r.Identifier,
		Class:      r.Class,
	}
	if len(r.Attributes.Data) > 0 {
		s.Attributes = r.Attributes.Data
	}
	if len(r.References.Data) > 0 {
		s.References = r.References.Data
	}
	if len(r.Collections.Data) > 0 {
		s.Collections = r.Collections.Data
	}
	return s
}

type Store struct {
	db     database.DB
	runID  string
	logger ectologger.Logger
}

// New returns a store writing rows tagged with runID. The store owns db and
// closes it on Close.
func New(db database.DB, runID string, logger ectologger.Logger) *Store {
	return &Store{
		db:     db,
		runID:  runID,
		logger: logger,
	}
}

func (s *Store) Store(ctx context.Context, item models.Snapshot) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "sqlstore.Store.Store")
	defer span.End()

	driver := s.db.DriverName()
	ib := database.NewInsertBuilder(driver)
	ib.InsertInto(itemsTable)
	ib.Cols("run_id", "identifier", "class", "attributes", "refs", "collections", "fingerprint")
	ib.Values(
		s.runID,
		item.Identifier,
		item.Class,
		database.NewJSONB(orEmpty(item.Attributes)),
		database.NewJSONB(orEmpty(item.References)),
		database.NewJSONB(orEmptyLists(item.Collections)),
		fingerprint.Snapshot(item),
	)

	var id int64
	if database.SupportsReturning(driver) {
		ib.Returning("id")
		query, args := ib.Build()
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("identifier", item.Identifier).Error("Failed to insert item")
			return 0, fmt.Errorf("failed to insert item %s: %w", item.Identifier, err)
		}
		return id, nil
	}

	query, args := ib.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("identifier", item.Identifier).Error("Failed to insert item")
		return 0, fmt.Errorf("failed to insert item %s: %w", item.Identifier, err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("failed to read id of item %s: %w", item.Identifier, err)
	}
	return id, nil
}

// StoreCollection writes one row per child, in order, inside a transaction.
func (s *Store) StoreCollection(ctx context.Context, parentID int64, name string, childIdentifiers []string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "sqlstore.Store.StoreCollection")
	defer span.End()

	if len(childIdentifiers) == 0 {
		return nil
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for start := 0; start < len(childIdentifiers); start += collectionChunkSize {
		end := min(start+collectionChunkSize, len(childIdentifiers))

		ib := database.NewInsertBuilder(s.db.DriverName())
		ib.InsertInto(collectionsTable)
		ib.Cols("parent_id", "name", "position", "child_identifier")
		for i := start; i < end; i++ {
			ib.Values(parentID, name, i, childIdentifiers[i])
		}

		query, args := ib.Build()
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"parent_id":  parentID,
				"collection": name,
				"position":   start,
			}).Error("Failed to insert collection")
			return fmt.Errorf("failed to insert collection %d.%s: %w", parentID, name, err)
		}
	}

	return tx.Commit(ctx)
}

// Get reads back the item stored under identifier in this run.
func (s *Store) Get(ctx context.Context, identifier string) (*Row, error) {
	ctx, span := tracing.StartSpan(ctx, "sqlstore.Store.Get")
	defer span.End()

	sb := database.NewSelectBuilder(s.db.DriverName())
	sb.Select("id", "run_id", "identifier", "class", "attributes", "refs", "collections", "fingerprint")
	sb.From(itemsTable)
	sb.Where(
		sb.Equal("run_id", s.runID),
		sb.Equal("identifier", identifier),
	)

	query, args := sb.Build()
	var row Row
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
		}
		s.logger.WithContext(ctx).WithError(err).WithField("identifier", identifier).Error("Failed to get item")
		return nil, fmt.Errorf("failed to get item %s: %w", identifier, err)
	}
	return &row, nil
}

// Collection returns the child identifiers of a stored collection in
// insertion order.
func (s *Store) Collection(ctx context.Context, parentID int64, name string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "sqlstore.Store.Collection")
	defer span.End()

	sb := database.NewSelectBuilder(s.db.DriverName())
	sb.Select("child_identifier")
	sb.From(collectionsTable)
	sb.Where(
		sb.Equal("parent_id", parentID),
		sb.Equal("name", name),
	)
	sb.OrderBy("position")

	query, args := sb.Build()
	var children []string
	if err := s.db.SelectContext(ctx, &children, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read collection %d.%s: %w", parentID, name, err)
	}
	return children, nil
}

// CountByClass returns the number of items of class stored in this run.
func (s *Store) CountByClass(ctx context.Context, class string) (int, error) {
	sb := database.NewSelectBuilder(s.db.DriverName())
	sb.Select("COUNT(*)")
	sb.From(itemsTable)
	sb.Where(
		sb.Equal("run_id", s.runID),
		sb.Equal("class", class),
	)

	query, args := sb.Build()
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s items: %w", class, err)
	}
	return count, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to close database")
		return err
	}
	return nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyLists(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}
