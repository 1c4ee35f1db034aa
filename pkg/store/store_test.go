package store_test

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/memstore"
)

func newWriter() (*store.Writer, *memstore.Store) {
	mem := memstore.New()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return store.NewWriter(mem, "memory", logger), mem
}

func TestWriter_StoreOnce(t *testing.T) {
	ctx := context.Background()
	w, mem := newWriter()
	gene := models.NewFactory(nil).New("Gene")
	gene.SetAttribute("primaryIdentifier", "S000001855")

	require.NoError(t, w.Store(ctx, gene))
	assert.True(t, gene.Stored())
	assert.Equal(t, int64(1), gene.StoredID())

	err := w.Store(ctx, gene)
	assert.ErrorIs(t, err, store.ErrAlreadyStored)

	require.NoError(t, w.Ensure(ctx, gene))
	assert.Len(t, mem.Records(), 1)
	assert.Equal(t, map[string]int{"Gene": 1}, w.Counts())
}

func TestWriter_StoreCollection_RequiresStoredParent(t *testing.T) {
	ctx := context.Background()
	w, mem := newWriter()
	f := models.NewFactory(nil)
	gene := f.New("Gene")
	annotation := f.New("GOAnnotation")

	err := w.StoreCollection(ctx, gene, "goAnnotation", []*models.Item{annotation})
	assert.ErrorIs(t, err, store.ErrParentNotStored)

	require.NoError(t, w.Store(ctx, gene))
	require.NoError(t, w.StoreCollection(ctx, gene, "goAnnotation", []*models.Item{annotation}))

	writes := mem.CollectionsOf(gene.ID)
	require.Len(t, writes, 1)
	assert.Equal(t, "goAnnotation", writes[0].Name)
	assert.Equal(t, []string{annotation.ID}, writes[0].ChildIdentifiers)
	assert.Equal(t, 1, w.CollectionCount())
}

func TestMemstore_Queries(t *testing.T) {
	ctx := context.Background()
	w, mem := newWriter()
	f := models.NewFactory(nil)

	g1 := f.New("Gene")
	g1.SetAttribute("primaryIdentifier", "A")
	g2 := f.New("Gene")
	g2.SetAttribute("primaryIdentifier", "B")
	org := f.New("Organism")
	org.SetAttribute("taxonId", "4932")
	g1.SetReference("organism", org)

	for _, item := range []*models.Item{g1, org, g2} {
		require.NoError(t, w.Store(ctx, item))
	}

	assert.Len(t, mem.ByClass("Gene"), 2)
	rec, ok := mem.Find("Gene", "primaryIdentifier", "A")
	require.True(t, ok)
	assert.Equal(t, org.ID, rec.References["organism"])
	assert.Equal(t, 1, mem.Position(org.ID))
	assert.Equal(t, -1, mem.Position("missing"))

	require.NoError(t, w.Close(ctx))
	assert.Error(t, w.Store(ctx, f.New("Gene")))
}
