// Package pipeline drives one pass over a row source and then writes
// everything the pass accumulated, in dependency order, exactly once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/metrics"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rowerror"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rows"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/shared"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

type State string

const (
	StateCreated    State = "CREATED"
	StateRunning    State = "RUNNING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// ErrAlreadyRun is returned when Run is called on a pipeline that has left
// the CREATED state. A new pipeline is needed per input.
var ErrAlreadyRun = errors.New("pipeline already run")

// Handler converts one row using the state of the current run.
type Handler interface {
	HandleRow(ctx context.Context, run *Run, row rows.Row) error
}

type HandlerFunc func(ctx context.Context, run *Run, row rows.Row) error

func (f HandlerFunc) HandleRow(ctx context.Context, run *Run, row rows.Row) error {
	return f(ctx, run, row)
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID         string                `json:"run_id"`
	Source        string                `json:"source"`
	State         State                 `json:"state"`
	Rows          int                   `json:"rows"`
	Skipped       int                   `json:"skipped"`
	SkippedByKind map[rowerror.Kind]int `json:"skipped_by_kind,omitempty"`
	Conflicts     int                   `json:"conflicts"`
	Annotations   int                   `json:"annotations"`
	Stored        map[string]int        `json:"stored,omitempty"`
	Collections   int                   `json:"collections"`
	StartedAt     time.Time             `json:"started_at"`
	Duration      time.Duration         `json:"duration"`
	Error         string                `json:"error,omitempty"`
}

// StoredTotal is the number of items written by the run.
func (s Summary) StoredTotal() int {
	total := 0
	for _, n := range s.Stored {
		total += n
	}
	return total
}

type Pipeline struct {
	name    string
	writer  *store.Writer
	lookups *shared.Lookups
	logger  ectologger.Logger
	opts    runOptions

	mu      sync.RWMutex
	state   State
	summary Summary

	// writer totals when the run started; the writer may be shared with
	// earlier runs of the same load
	baseCounts      map[string]int
	baseCollections int
}

type runOptions struct {
	sentinels []string
}

type Option func(*runOptions)

// WithSentinels sets the absent-value tokens of the run's resolver.
func WithSentinels(sentinels ...string) Option {
	return func(o *runOptions) {
		o.sentinels = sentinels
	}
}

func New(name string, w *store.Writer, lookups *shared.Lookups, logger ectologger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:    name,
		writer:  w,
		lookups: lookups,
		logger:  logger.WithField("source", name),
		state:   StateCreated,
		summary: Summary{
			RunID:         uuid.New().String(),
			Source:        name,
			State:         StateCreated,
			SkippedByKind: make(map[rowerror.Kind]int),
		},
	}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Summary returns a copy of the current summary; it is safe to call while
// the pipeline runs.
func (p *Pipeline) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.summary
	s.SkippedByKind = make(map[rowerror.Kind]int, len(p.summary.SkippedByKind))
	for k, v := range p.summary.SkippedByKind {
		s.SkippedByKind[k] = v
	}
	if p.summary.Stored != nil {
		s.Stored = make(map[string]int, len(p.summary.Stored))
		for k, v := range p.summary.Stored {
			s.Stored[k] = v
		}
	}
	return s
}

// Run consumes src to exhaustion, handing each row to h, then finalizes.
// Recovered row errors are counted and the row is skipped; any other error
// moves the pipeline to FAILED and is returned. src is closed on return.
func (p *Pipeline) Run(ctx context.Context, src rows.Source, h Handler) (Summary, error) {
	defer src.Close()

	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run")
	defer span.End()

	p.mu.Lock()
	if p.state != StateCreated {
		p.mu.Unlock()
		return p.Summary(), ErrAlreadyRun
	}
	p.state = StateRunning
	p.summary.State = StateRunning
	p.summary.StartedAt = time.Now().UTC()
	p.baseCounts = p.writer.Counts()
	p.baseCollections = p.writer.CollectionCount()
	p.mu.Unlock()

	log := p.logger.WithContext(ctx).WithField("run_id", p.summary.RunID)
	log.Info("Starting pipeline run")

	run := p.newRun()

	for {
		row, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.fail(ctx, err)
		}

		p.mu.Lock()
		p.summary.Rows++
		p.mu.Unlock()
		metrics.RowsTotal.WithLabelValues(p.name).Inc()

		if err := h.HandleRow(ctx, run, row); err != nil {
			err = rowerror.AtLine(err, p.name, row.Line)
			if rowerror.IsFatal(err) {
				return p.fail(ctx, err)
			}
			p.skip(ctx, err)
		}
	}

	if err := p.finalize(ctx, run); err != nil {
		return p.fail(ctx, err)
	}

	p.mu.Lock()
	p.state = StateDone
	p.summary.State = StateDone
	p.summary.Duration = time.Since(p.summary.StartedAt)
	p.recordStored()
	p.mu.Unlock()

	summary := p.Summary()
	metrics.PipelineDuration.WithLabelValues(p.name, string(StateDone)).Observe(summary.Duration.Seconds())
	log.WithFields(map[string]any{
		"rows":        summary.Rows,
		"skipped":     summary.Skipped,
		"conflicts":   summary.Conflicts,
		"annotations": summary.Annotations,
		"stored":      summary.StoredTotal(),
		"collections": summary.Collections,
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("Pipeline run completed")

	return summary, nil
}

// finalize writes annotations first, then collections, then every item of
// the run that is still unstored.
func (p *Pipeline) finalize(ctx context.Context, run *Run) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.finalize")
	defer span.End()

	p.mu.Lock()
	p.state = StateFinalizing
	p.summary.State = StateFinalizing
	p.mu.Unlock()

	annotations := 0
	for _, acc := range run.accumulators {
		if err := acc.Finalize(ctx, p.writer); err != nil {
			return fmt.Errorf("failed to write annotations: %w", err)
		}
		annotations += acc.Len()
	}

	if _, err := run.Collections.FlushAll(ctx, p.writer); err != nil {
		return fmt.Errorf("failed to write collections: %w", err)
	}

	for _, item := range run.Entities.Entities() {
		if err := p.writer.Ensure(ctx, item); err != nil {
			return fmt.Errorf("failed to write entities: %w", err)
		}
	}
	for _, item := range run.items {
		if err := p.writer.Ensure(ctx, item); err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
	}

	p.mu.Lock()
	p.summary.Annotations = annotations
	p.mu.Unlock()
	return nil
}

// recordStored sets the stored counts of this run from the writer totals.
// Callers hold p.mu.
func (p *Pipeline) recordStored() {
	stored := make(map[string]int)
	for class, n := range p.writer.Counts() {
		if d := n - p.baseCounts[class]; d > 0 {
			stored[class] = d
		}
	}
	p.summary.Stored = stored
	p.summary.Collections = p.writer.CollectionCount() - p.baseCollections
}

func (p *Pipeline) fail(ctx context.Context, err error) (Summary, error) {
	p.mu.Lock()
	p.state = StateFailed
	p.summary.State = StateFailed
	p.summary.Error = err.Error()
	p.summary.Duration = time.Since(p.summary.StartedAt)
	p.recordStored()
	p.mu.Unlock()

	summary := p.Summary()
	metrics.PipelineDuration.WithLabelValues(p.name, string(StateFailed)).Observe(summary.Duration.Seconds())
	p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"run_id": summary.RunID,
		"rows":   summary.Rows,
		"stored": summary.StoredTotal(),
	}).Error("Pipeline run failed")

	return summary, fmt.Errorf("pipeline %s failed: %w", p.name, err)
}

func (p *Pipeline) skip(ctx context.Context, err error) {
	kind := rowerror.KindOf(err)

	p.mu.Lock()
	p.summary.Skipped++
	p.summary.SkippedByKind[kind]++
	p.mu.Unlock()
	metrics.RowsSkippedTotal.WithLabelValues(p.name, string(kind)).Inc()

	p.logger.WithContext(ctx).WithError(err).WithField("kind", string(kind)).Debug("Skipped row")
}

func (p *Pipeline) conflict(item *models.Item, name, kept, rejected string) {
	p.mu.Lock()
	p.summary.Conflicts++
	p.mu.Unlock()
	metrics.ConflictsTotal.WithLabelValues(p.name, item.Class).Inc()

	p.logger.WithFields(map[string]any{
		"identifier": item.ID,
		"key":        item.Key,
	}).Debug(rowerror.Conflict(name, kept, rejected).Error())
}
