package pipeline

import (
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/annotation"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/collection"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/resolver"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/shared"
)

// Run is the state owned by a single pipeline run. Handlers keep all their
// caches here so that runs never share state except through Shared.
type Run struct {
	ID          string
	Source      string
	Factory     *models.Factory
	Entities    *resolver.Resolver
	Collections *collection.Builder
	Shared      *shared.Lookups

	accumulators []*annotation.Accumulator
	named        map[string]*annotation.Accumulator
	items        []*models.Item
	state        map[string]any
}

func (p *Pipeline) newRun() *Run {
	factory := models.NewFactory(models.ConflictFunc(p.conflict))

	var opts []resolver.Option
	if len(p.opts.sentinels) > 0 {
		opts = append(opts, resolver.WithSentinels(p.opts.sentinels...))
	}

	return &Run{
		ID:          p.summary.RunID,
		Source:      p.name,
		Factory:     factory,
		Entities:    resolver.New(factory, opts...),
		Collections: collection.NewBuilder(),
		Shared:      p.lookups,
		named:       make(map[string]*annotation.Accumulator),
		state:       make(map[string]any),
	}
}

// Accumulator returns the run's accumulator registered under name, creating
// it from cfg on first use.
func (r *Run) Accumulator(name string, cfg annotation.Config) *annotation.Accumulator {
	if acc, ok := r.named[name]; ok {
		return acc
	}
	acc := annotation.New(cfg, r.Factory, r.Collections)
	r.named[name] = acc
	r.accumulators = append(r.accumulators, acc)
	return acc
}

// NewItem creates an item that is not reachable through any key, such as a
// homologue record, and schedules it for the final flush.
func (r *Run) NewItem(class string) *models.Item {
	item := r.Factory.New(class)
	r.items = append(r.items, item)
	return item
}

// Items returns the keyless items created so far.
func (r *Run) Items() []*models.Item {
	out := make([]*models.Item, len(r.items))
	copy(out, r.items)
	return out
}

// Value returns per-run handler state stored under key, creating it with
// init on first use.
func Value[T any](r *Run, key string, init func() T) T {
	if v, ok := r.state[key]; ok {
		return v.(T)
	}
	v := init()
	r.state[key] = v
	return v
}
