//go:build integration

package graphstore

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeastgenome/yeastmine-bio-sources/internal/testservices"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
)

func TestStore_Memgraph(t *testing.T) {
	ctx := context.Background()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	svc := testservices.Memgraph(t)

	client, err := NewClient(Config{Host: svc.Host, Port: svc.Port}, logger)
	require.NoError(t, err)
	require.NoError(t, client.VerifyConnectivity(ctx))

	s := New(client, "run-graph", logger)
	t.Cleanup(func() { _ = s.Close(ctx) })

	// the reference target is written after the item pointing at it
	_, err = s.Store(ctx, models.Snapshot{
		Identifier: "Gene_1",
		Class:      "Gene",
		Attributes: map[string]string{"primaryIdentifier": "S000001855"},
		References: map[string]string{"organism": "Organism_1"},
	})
	require.NoError(t, err)
	_, err = s.Store(ctx, models.Snapshot{
		Identifier: "Organism_1",
		Class:      "Organism",
		Attributes: map[string]string{"taxonId": "4932"},
	})
	require.NoError(t, err)

	result, err := neo4j.ExecuteQuery(ctx, client.driver, `
		MATCH (g:Gene {identifier: "Gene_1"})-[:organism]->(o:Organism)
		RETURN o.taxonId AS taxon, o.placeholder AS placeholder
	`, nil, neo4j.EagerResultTransformer)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	taxon, _ := result.Records[0].Get("taxon")
	placeholder, _ := result.Records[0].Get("placeholder")
	assert.Equal(t, "4932", taxon)
	assert.Equal(t, false, placeholder)
}
