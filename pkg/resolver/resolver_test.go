package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
)

func TestResolver_Resolve_Idempotent(t *testing.T) {
	r := New(models.NewFactory(nil))

	a1 := r.Resolve("Gene", "primaryIdentifier", "S000001855")
	a2 := r.Resolve("Gene", "primaryIdentifier", "S000001855")
	b := r.Resolve("Gene", "primaryIdentifier", "S000002181")

	require.NotNil(t, a1)
	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, r.Len())

	v, ok := a1.Attribute("primaryIdentifier")
	assert.True(t, ok)
	assert.Equal(t, "S000001855", v)
	assert.Equal(t, "S000001855", a1.Key)
}

func TestResolver_Resolve_TrimsKeys(t *testing.T) {
	r := New(models.NewFactory(nil))

	a := r.Resolve("Gene", "primaryIdentifier", " YAL001C ")
	b := r.Resolve("Gene", "primaryIdentifier", "YAL001C")
	assert.Same(t, a, b)
}

func TestResolver_Resolve_Sentinels(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sentinels []string
		isNil     bool
	}{
		{name: "empty", key: "", isNil: true},
		{name: "dash", key: "-", isNil: true},
		{name: "triple dash", key: "---", isNil: true},
		{name: "real key", key: "YAL001C", isNil: false},
		{name: "custom sentinel", key: "NULL", sentinels: []string{"NULL"}, isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if len(tt.sentinels) > 0 {
				opts = append(opts, WithSentinels(tt.sentinels...))
			}
			r := New(models.NewFactory(nil), opts...)
			item := r.Resolve("Gene", "secondaryIdentifier", tt.key)
			assert.Equal(t, tt.isNil, item == nil)
			if tt.isNil {
				assert.Equal(t, 0, r.Len())
			}
		})
	}
}

func TestResolver_IndexesAreSeparateKeySpaces(t *testing.T) {
	r := New(models.NewFactory(nil))

	byPrimary := r.Resolve("Gene", "primaryIdentifier", "X")
	bySecondary := r.Resolve("Gene", "secondaryIdentifier", "X")
	organism := r.Resolve("Organism", "primaryIdentifier", "X")

	assert.NotSame(t, byPrimary, bySecondary)
	assert.NotSame(t, byPrimary, organism)
	assert.Equal(t, "Organism", organism.Class)
}

func TestResolver_Alias(t *testing.T) {
	r := New(models.NewFactory(nil))
	gene := r.Resolve("Gene", "primaryIdentifier", "S000001855")

	assert.True(t, r.Alias("Gene", "secondaryIdentifier", "YFL039C", gene))
	assert.Same(t, gene, r.Resolve("Gene", "secondaryIdentifier", "YFL039C"))

	other := r.Resolve("Gene", "primaryIdentifier", "S000002181")
	assert.False(t, r.Alias("Gene", "secondaryIdentifier", "YFL039C", other))
	found, ok := r.Lookup("Gene", "secondaryIdentifier", "YFL039C")
	assert.True(t, ok)
	assert.Same(t, gene, found)

	assert.Equal(t, 2, r.Len())
}

func TestResolver_ResolveWith(t *testing.T) {
	r := New(models.NewFactory(nil))
	calls := 0
	build := func(f *models.Factory, class, key string) *models.Item {
		calls++
		item := f.New(class)
		item.SetAttribute("identifier", "GO:"+key)
		return item
	}

	a := r.ResolveWith("GOTerm", "raw", "0005739", build)
	b := r.ResolveWith("GOTerm", "raw", "0005739", build)

	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
	v, _ := a.Attribute("identifier")
	assert.Equal(t, "GO:0005739", v)
}

func TestResolver_FirstWriteWinsAcrossResolutions(t *testing.T) {
	r := New(models.NewFactory(nil))

	gene := r.Resolve("Gene", "primaryIdentifier", "S000001855")
	gene.SetAttribute("symbol", "ACT1")

	again := r.Resolve("Gene", "primaryIdentifier", "S000001855")
	again.SetAttribute("symbol", "ABY1")

	v, _ := gene.Attribute("symbol")
	assert.Equal(t, "ACT1", v)
}

func TestResolver_EntitiesInCreationOrder(t *testing.T) {
	r := New(models.NewFactory(nil))
	a := r.Resolve("Gene", "primaryIdentifier", "A")
	o := r.Resolve("Organism", "taxonId", "4932")
	b := r.Resolve("Gene", "primaryIdentifier", "B")
	r.Resolve("Gene", "primaryIdentifier", "A")

	assert.Equal(t, []*models.Item{a, o, b}, r.Entities())

	_, ok := r.Lookup("Gene", "primaryIdentifier", "C")
	assert.False(t, ok)
	_, ok = r.Lookup("Pathway", "identifier", "A")
	assert.False(t, ok)
}
