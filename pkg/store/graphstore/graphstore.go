package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

const itemLabel = "Item"

// reservedProperties are the node properties the store itself maintains.
// An item attribute with one of these names is written as attr_<name>.
var reservedProperties = map[string]bool{
	"identifier":  true,
	"run_id":      true,
	"class":       true,
	"stored_id":   true,
	"placeholder": true,
}

type statement struct {
	cypher string
	params map[string]any
}

type writer interface {
	ExecuteWrite(ctx context.Context, statements ...statement) error
	Close(ctx context.Context) error
}

// Store writes every item as an :Item node keyed by (identifier, run_id).
// Targets referenced before they are stored are created as placeholder
// nodes and completed by their own Store call.
type Store struct {
	client writer
	runID  string
	logger ectologger.Logger

	mu          sync.Mutex
	nextID      int64
	identifiers map[int64]string
}

func New(client *Client, runID string, logger ectologger.Logger) *Store {
	return newStore(client, runID, logger)
}

func newStore(client writer, runID string, logger ectologger.Logger) *Store {
	return &Store{
		client:      client,
		runID:       runID,
		logger:      logger,
		identifiers: make(map[int64]string),
	}
}

func (s *Store) Store(ctx context.Context, item models.Snapshot) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.Store")
	defer span.End()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	if err := s.client.ExecuteWrite(ctx, itemStatements(s.runID, id, item)...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"identifier": item.Identifier,
			"class":      item.Class,
		}).Error("Failed to write item node")
		return 0, fmt.Errorf("failed to write item node %s: %w", item.Identifier, err)
	}

	s.mu.Lock()
	s.identifiers[id] = item.Identifier
	s.mu.Unlock()

	return id, nil
}

func (s *Store) StoreCollection(ctx context.Context, parentID int64, name string, childIdentifiers []string) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.StoreCollection")
	defer span.End()

	s.mu.Lock()
	parent, ok := s.identifiers[parentID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no stored node with id %d", parentID)
	}
	if len(childIdentifiers) == 0 {
		return nil
	}

	if err := s.client.ExecuteWrite(ctx, relationshipStatement(s.runID, parent, name, childIdentifiers)); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"parent":     parent,
			"collection": name,
		}).Error("Failed to write collection relationships")
		return fmt.Errorf("failed to write collection %s.%s: %w", parent, name, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func itemStatements(runID string, id int64, item models.Snapshot) []statement {
	props := nodeProperties(item.Attributes)

	statements := []statement{{
		cypher: fmt.Sprintf(`
			MERGE (n:%s {identifier: $identifier, run_id: $run_id})
			SET n:%s, n += $props, n.class = $class, n.stored_id = $stored_id, n.placeholder = false
		`, itemLabel, sanitize(item.Class, itemLabel)),
		params: map[string]any{
			"identifier": item.Identifier,
			"run_id":     runID,
			"class":      item.Class,
			"stored_id":  id,
			"props":      props,
		},
	}}

	for _, name := range sortedKeys(item.References) {
		statements = append(statements, relationshipStatement(runID, item.Identifier, name, []string{item.References[name]}))
	}
	for _, name := range sortedKeys(item.Collections) {
		statements = append(statements, relationshipStatement(runID, item.Identifier, name, item.Collections[name]))
	}
	return statements
}

func nodeProperties(attributes map[string]string) map[string]any {
	props := make(map[string]any, len(attributes))
	for k, v := range attributes {
		if reservedProperties[k] {
			k = "attr_" + k
		}
		props[k] = v
	}
	return props
}

// relationshipStatement links from to each target in order, creating
// placeholder nodes for targets not yet written.
func relationshipStatement(runID, from, name string, targets []string) statement {
	return statement{
		cypher: fmt.Sprintf(`
			MATCH (p:%[1]s {identifier: $from, run_id: $run_id})
			UNWIND range(0, size($targets) - 1) AS i
			MERGE (c:%[1]s {identifier: $targets[i], run_id: $run_id})
			ON CREATE SET c.placeholder = true
			MERGE (p)-[r:%[2]s]->(c)
			SET r.position = i
		`, itemLabel, sanitize(name, "RELATED_TO")),
		params: map[string]any{
			"from":    from,
			"run_id":  runID,
			"targets": targets,
		},
	}
}

// sanitize keeps ASCII letters, digits and underscores so the name can be
// spliced into Cypher as a label or relationship type.
func sanitize(name, fallback string) string {
	var b strings.Builder
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
