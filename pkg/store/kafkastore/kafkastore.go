// Package kafkastore publishes stored items and collections as JSON events
// to a Kafka topic.
package kafkastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

const (
	EventItemStored       = "item_stored"
	EventCollectionStored = "collection_stored"

	schemaVersion = "1.0"

	defaultBatchSize = 100
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// ItemEvent is published once per stored item, keyed by identifier.
type ItemEvent struct {
	EventType   string              `json:"event_type"`
	RunID       string              `json:"run_id"`
	StoredID    int64               `json:"stored_id"`
	Identifier  string              `json:"identifier"`
	Class       string              `json:"class"`
	Attributes  map[string]string   `json:"attributes,omitempty"`
	References  map[string]string   `json:"references,omitempty"`
	Collections map[string][]string `json:"collections,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// CollectionEvent is published once per stored collection, keyed by the
// parent identifier.
type CollectionEvent struct {
	EventType        string    `json:"event_type"`
	RunID            string    `json:"run_id"`
	ParentID         int64     `json:"parent_id"`
	ParentIdentifier string    `json:"parent_identifier"`
	Name             string    `json:"name"`
	Children         []string  `json:"children"`
	Timestamp        time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Store buffers events and hands them to the writer batchSize at a time, so
// a load does not wait out the writer's batch timeout once per item. Buffered
// events are sent on Close.
type Store struct {
	writer    messageWriter
	topic     string
	runID     string
	batchSize int
	logger    ectologger.Logger

	mu          sync.Mutex
	nextID      int64
	identifiers map[int64]string

	sendMu  sync.Mutex
	pending []kafka.Message
}

func New(cfg Config, runID string, logger ectologger.Logger) *Store {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newStore(w, cfg.Topic, runID, cfg.BatchSize, logger)
}

func newStore(w messageWriter, topic, runID string, batchSize int, logger ectologger.Logger) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{
		writer:      w,
		topic:       topic,
		runID:       runID,
		batchSize:   batchSize,
		logger:      logger,
		identifiers: make(map[int64]string),
	}
}

func (s *Store) Store(ctx context.Context, item models.Snapshot) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "kafkastore.Store.Store")
	defer span.End()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	event := &ItemEvent{
		EventType:   EventItemStored,
		RunID:       s.runID,
		StoredID:    id,
		Identifier:  item.Identifier,
		Class:       item.Class,
		Attributes:  item.Attributes,
		References:  item.References,
		Collections: item.Collections,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.publish(ctx, item.Identifier, EventItemStored, item.Class, event); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.identifiers[id] = item.Identifier
	s.mu.Unlock()

	return id, nil
}

func (s *Store) StoreCollection(ctx context.Context, parentID int64, name string, childIdentifiers []string) error {
	ctx, span := tracing.StartSpan(ctx, "kafkastore.Store.StoreCollection")
	defer span.End()

	s.mu.Lock()
	parent, ok := s.identifiers[parentID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no published item with id %d", parentID)
	}

	event := &CollectionEvent{
		EventType:        EventCollectionStored,
		RunID:            s.runID,
		ParentID:         parentID,
		ParentIdentifier: parent,
		Name:             name,
		Children:         childIdentifiers,
		Timestamp:        time.Now().UTC(),
	}
	return s.publish(ctx, parent, EventCollectionStored, name, event)
}

func (s *Store) publish(ctx context.Context, key, eventType, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "run_id", Value: []byte(s.runID)},
			{Key: "subject", Value: []byte(subject)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		},
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.pending = append(s.pending, msg)
	if len(s.pending) < s.batchSize {
		return nil
	}
	if err := s.send(ctx); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", eventType, key, err)
	}
	return nil
}

// send writes every pending message in one call. The caller holds sendMu.
func (s *Store) send(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil

	if err := s.writer.WriteMessages(ctx, batch...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"messages": len(batch),
		}).Error("Failed to publish events")
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"messages": len(batch),
	}).Debug("Published events")

	return nil
}

// Close sends any buffered events before closing the writer.
func (s *Store) Close(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var sendErr error
	if err := s.send(ctx); err != nil {
		sendErr = fmt.Errorf("failed to publish buffered events: %w", err)
	}
	return errors.Join(sendErr, s.writer.Close())
}
