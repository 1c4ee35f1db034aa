package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
)

type recordingWriter struct {
	batches [][]statement
	err     error
	closed  bool
}

func (w *recordingWriter) ExecuteWrite(_ context.Context, statements ...statement) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, statements)
	return nil
}

func (w *recordingWriter) Close(_ context.Context) error {
	w.closed = true
	return nil
}

func testStore(w *recordingWriter) *Store {
	return newStore(w, "run-1", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestStore_WritesNodeAndReferences(t *testing.T) {
	w := &recordingWriter{}
	s := testStore(w)

	id, err := s.Store(context.Background(), models.Snapshot{
		Identifier:  "Gene_2",
		Class:       "Gene",
		Attributes:  map[string]string{"primaryIdentifier": "S000001855"},
		References:  map[string]string{"organism": "Organism_1"},
		Collections: map[string][]string{"publications": {"Publication_3", "Publication_4"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Len(t, w.batches, 1)
	batch := w.batches[0]
	require.Len(t, batch, 3)

	assert.Contains(t, batch[0].cypher, "MERGE (n:Item {identifier: $identifier, run_id: $run_id})")
	assert.Contains(t, batch[0].cypher, "SET n:Gene")
	assert.Equal(t, map[string]any{"primaryIdentifier": "S000001855"}, batch[0].params["props"])
	assert.Equal(t, int64(1), batch[0].params["stored_id"])

	assert.Contains(t, batch[1].cypher, "-[r:organism]->")
	assert.Equal(t, []string{"Organism_1"}, batch[1].params["targets"])
	assert.Contains(t, batch[2].cypher, "-[r:publications]->")
	assert.Equal(t, []string{"Publication_3", "Publication_4"}, batch[2].params["targets"])
}

func TestItemStatements_ReservedAttributesKeepNodeKey(t *testing.T) {
	statements := itemStatements("run-1", 7, models.Snapshot{
		Identifier: "GOTerm_1",
		Class:      "GOTerm",
		Attributes: map[string]string{"identifier": "GO:0003677", "name": "DNA binding", "class": "x"},
		References: map[string]string{"dataSet": "DataSet_1"},
	})
	require.Len(t, statements, 2)

	node := statements[0]
	assert.Equal(t, "GOTerm_1", node.params["identifier"])
	assert.Equal(t, "GOTerm", node.params["class"])
	assert.Equal(t, map[string]any{
		"attr_identifier": "GO:0003677",
		"attr_class":      "x",
		"name":            "DNA binding",
	}, node.params["props"])

	// the item's own edges match on the key the MERGE wrote
	assert.Equal(t, "GOTerm_1", statements[1].params["from"])
	assert.Equal(t, []string{"DataSet_1"}, statements[1].params["targets"])
}

func TestStore_StoreCollection(t *testing.T) {
	w := &recordingWriter{}
	s := testStore(w)
	ctx := context.Background()

	id, err := s.Store(ctx, models.Snapshot{Identifier: "Pathway_1", Class: "Pathway"})
	require.NoError(t, err)

	require.NoError(t, s.StoreCollection(ctx, id, "genes", []string{"Gene_2", "Gene_3"}))
	require.Len(t, w.batches, 2)
	st := w.batches[1][0]
	assert.Equal(t, "Pathway_1", st.params["from"])
	assert.Contains(t, st.cypher, "ON CREATE SET c.placeholder = true")

	// empty collections write nothing
	require.NoError(t, s.StoreCollection(ctx, id, "genes", nil))
	assert.Len(t, w.batches, 2)

	assert.Error(t, s.StoreCollection(ctx, 99, "genes", []string{"Gene_2"}))
}

func TestStore_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("bolt down")}
	s := testStore(w)

	_, err := s.Store(context.Background(), models.Snapshot{Identifier: "Gene_1", Class: "Gene"})
	assert.ErrorContains(t, err, "bolt down")

	// the failed write leaves no id behind for collections
	assert.Error(t, s.StoreCollection(context.Background(), 1, "x", []string{"y"}))
}

func TestStore_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, testStore(w).Close(context.Background()))
	assert.True(t, w.closed)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, fallback, want string
	}{
		{in: "GOAnnotation", fallback: "Item", want: "GOAnnotation"},
		{in: "go-term) DETACH DELETE", fallback: "Item", want: "gotermDETACHDELETE"},
		{in: "---", fallback: "RELATED_TO", want: "RELATED_TO"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in, tt.fallback))
		})
	}
}
