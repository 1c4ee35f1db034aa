// Package loader runs the jobs of a manifest as pipelines over one store,
// sharing organism, publication and provenance items between them.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yeastgenome/yeastmine-bio-sources/config"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/database"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/manifest"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/mapping"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/metrics"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/pipeline"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/rows"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/runlock"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/shared"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/sources"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/startup"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

var ErrUnknownSource = errors.New("unknown source")

type Options struct {
	// DryRun writes into an in-memory store and skips the run lock.
	DryRun bool
	// Only restricts the load to the named jobs.
	Only []string
}

type Result struct {
	RunID        string             `json:"run_id"`
	Manifest     string             `json:"manifest"`
	Backend      string             `json:"backend"`
	Jobs         []pipeline.Summary `json:"jobs"`
	SharedStored int                `json:"shared_stored"`
	FailedJob    string             `json:"failed_job,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

type Loader struct {
	cfg     *config.Config
	catalog *sources.Catalog
	opener  *rows.Opener
	logger  ectologger.Logger

	store     store.Store
	storeName string

	mu        sync.RWMutex
	pipelines []*pipeline.Pipeline
}

type Option func(*Loader)

// WithStore makes the load write into s instead of the configured backend.
// s is closed when the load ends.
func WithStore(s store.Store, name string) Option {
	return func(l *Loader) {
		l.store = s
		l.storeName = name
	}
}

func New(cfg *config.Config, catalog *sources.Catalog, logger ectologger.Logger, opts ...Option) *Loader {
	l := &Loader{
		cfg:     cfg,
		catalog: catalog,
		opener:  rows.NewOpener(rows.S3Config{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint, PathStyle: cfg.S3Endpoint != ""}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the selected jobs in manifest order. The first fatal error
// stops the load; summaries of the jobs run so far are still returned.
// Shared lookup items are stored once, after the last job succeeds.
func (l *Loader) Run(ctx context.Context, m *manifest.Manifest, opts Options) (result Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "loader.Loader.Run")
	defer span.End()

	start := time.Now()
	result = Result{RunID: uuid.New().String(), Manifest: m.Name}
	defer func() { result.Duration = time.Since(start) }()

	jobs, err := m.Only(opts.Only)
	if err != nil {
		return result, err
	}

	log := l.logger.WithFields(map[string]any{"run_id": result.RunID, "manifest": m.Name})

	b := &backend{name: l.cfg.StoreBackend, cfg: l.cfg, runID: result.RunID, logger: l.logger}
	switch {
	case l.store != nil:
		b.name, b.store = l.storeName, l.store
	case opts.DryRun:
		b.name = BackendMemory
	}
	result.Backend = b.name

	deps := startup.NewStartup(l.logger, l.cfg.StartupMaxAttempts)
	if l.cfg.RunLockEnabled && !opts.DryRun {
		deps.AddDependency(l.runLock(m.Name))
	}
	deps.AddDependency(b)
	var sourceDB database.DB
	if hasQueryJob(jobs) {
		deps.AddDependency(sourceDatabase(l.cfg, l.logger, &sourceDB))
	}

	if err := deps.Start(ctx); err != nil {
		return result, err
	}
	defer func() {
		if stopErr := deps.Stop(ctx); stopErr != nil && err == nil {
			err = stopErr
		}
		if pushErr := metrics.Push(ctx, l.cfg.MetricsPushgatewayURL, l.cfg.MetricsJob); pushErr != nil {
			log.WithError(pushErr).Warn("Failed to push metrics")
		}
	}()

	w := store.NewWriter(b.store, b.name, l.logger)
	lookups := shared.NewLookups(models.NewFactory(models.ConflictFunc(func(item *models.Item, name, kept, rejected string) {
		log.WithFields(map[string]any{
			"identifier": item.ID,
			"attribute":  name,
			"kept":       kept,
			"rejected":   rejected,
		}).Debug("Conflicting value on shared item")
	})))
	for name, taxon := range m.Taxa {
		lookups.RegisterTaxon(name, taxon)
	}

	for _, job := range jobs {
		summary, err := l.runJob(ctx, job, w, lookups, sourceDB)
		if summary != nil {
			result.Jobs = append(result.Jobs, *summary)
		}
		if err != nil {
			result.FailedJob = job.Name
			log.WithError(err).WithField("job", job.Name).Error("Load stopped")
			return result, err
		}
	}

	result.SharedStored, err = lookups.Flush(ctx, w)
	if err != nil {
		return result, fmt.Errorf("failed to store shared items: %w", err)
	}

	log.WithFields(map[string]any{
		"jobs":          len(result.Jobs),
		"shared_stored": result.SharedStored,
		"backend":       b.name,
	}).Info("Load complete")

	return result, nil
}

func (l *Loader) runJob(ctx context.Context, job manifest.Job, w *store.Writer, lookups *shared.Lookups, sourceDB database.DB) (*pipeline.Summary, error) {
	def := job.Definition
	if def == nil {
		var ok bool
		if def, ok = l.catalog.Lookup(job.Source); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, job.Source)
		}
	}

	engine, err := mapping.NewEngine(def)
	if err != nil {
		return nil, err
	}

	src, err := l.openSource(ctx, job, def, sourceDB)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}

	p := pipeline.New(job.Name, w, lookups, l.logger, engine.PipelineOptions()...)
	l.track(p)

	summary, err := p.Run(ctx, src, engine)
	return &summary, err
}

func (l *Loader) openSource(ctx context.Context, job manifest.Job, def *mapping.Definition, sourceDB database.DB) (rows.Source, error) {
	if job.IsQuery() {
		return rows.NewQuerySource(ctx, sourceDB, job.Name, job.Query, job.QueryArgs()...)
	}

	rc, err := l.opener.Open(ctx, job.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", job.Path, err)
	}
	return def.Source(rc), nil
}

func (l *Loader) runLock(key string) *startup.Dependency {
	var (
		client *redis.Client
		lock   *runlock.Lock
		stop   func()
	)

	return &startup.Dependency{
		Name: "run-lock",
		StartFunc: func(ctx context.Context) error {
			var err error
			client, err = runlock.NewClient(ctx, runlock.Config{
				Host:     l.cfg.RedisHost,
				Port:     l.cfg.RedisPort,
				Password: l.cfg.RedisPassword,
				DB:       l.cfg.RedisDB,
			}, l.logger)
			if err != nil {
				return err
			}

			locker := runlock.NewLocker(client, l.cfg.RunLockPrefix, l.logger)
			lock, err = locker.TryAcquire(ctx, key, l.cfg.RunLockTTL, l.cfg.RunLockWait)
			if err != nil {
				_ = client.Close()
				return fmt.Errorf("manifest %s is being loaded elsewhere: %w", key, err)
			}
			stop = lock.KeepAlive(context.WithoutCancel(ctx))
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			stop()
			releaseErr := lock.Release(ctx)
			if err := client.Close(); err != nil && releaseErr == nil {
				return err
			}
			return releaseErr
		},
	}
}

func (l *Loader) track(p *pipeline.Pipeline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pipelines = append(l.pipelines, p)
}

// Summaries returns the live summary of every pipeline this loader started,
// oldest first.
func (l *Loader) Summaries() []pipeline.Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]pipeline.Summary, len(l.pipelines))
	for i, p := range l.pipelines {
		out[i] = p.Summary()
	}
	return out
}

// Summary returns the latest summary for the named job.
func (l *Loader) Summary(name string) (pipeline.Summary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.pipelines) - 1; i >= 0; i-- {
		if l.pipelines[i].Name() == name {
			return l.pipelines[i].Summary(), true
		}
	}
	return pipeline.Summary{}, false
}

func hasQueryJob(jobs []manifest.Job) bool {
	for _, job := range jobs {
		if job.IsQuery() {
			return true
		}
	}
	return false
}
