package sources

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/mapping"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/pipeline"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/shared"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/memstore"
)

func load(t *testing.T, name, input string) (*memstore.Store, pipeline.Summary) {
	t.Helper()
	catalog, err := Default()
	require.NoError(t, err)
	def, ok := catalog.Lookup(name)
	require.True(t, ok, name)
	engine, err := mapping.NewEngine(def)
	require.NoError(t, err)

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	mem := memstore.New()
	lookups := shared.NewLookups(models.NewFactory(nil))
	p := pipeline.New(name, store.NewWriter(mem, "memory", logger), lookups, logger, engine.PipelineOptions()...)

	summary, err := p.Run(context.Background(), def.Source(io.NopCloser(strings.NewReader(input))), engine)
	require.NoError(t, err)
	return mem, summary
}

func TestDefault_AllDefinitionsValid(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"aliases",
		"cglabrata-homologs",
		"cgob-homologs",
		"chromosomal-features",
		"complementation",
		"complex-interactions",
		"complexes",
		"diopt-orthologs",
		"disease-annotation",
		"fungi-homologs",
		"go-annotation",
		"homolog-genes",
		"interactions",
		"paralogs",
		"pathways",
		"pombe-homologs",
		"protein-ntermini",
		"protein-properties",
		"regulation",
	}, catalog.Names())

	for _, name := range catalog.Names() {
		def, _ := catalog.Lookup(name)
		_, err := mapping.NewEngine(def)
		assert.NoError(t, err, name)
	}
}

// collection returns the children written to the named collection of the
// item with identifier.
func collection(mem *memstore.Store, identifier, name string) []string {
	var out []string
	for _, w := range mem.CollectionsOf(identifier) {
		if w.Name == name {
			out = append(out, w.ChildIdentifiers...)
		}
	}
	return out
}

func TestCatalog_AddDuplicate(t *testing.T) {
	c := &Catalog{definitions: make(map[string]*mapping.Definition)}
	require.NoError(t, c.Add(&mapping.Definition{Name: "a"}))
	assert.Error(t, c.Add(&mapping.Definition{Name: "a"}))
	assert.Equal(t, 1, c.Len())
}

func TestCglabrataHomologs(t *testing.T) {
	mem, summary := load(t, "cglabrata-homologs", "YAL001C\tCAGL0A00110g\tCGOB\nYAL002W\t---\tCGOB\n")

	homologues := mem.ByClass("Homologue")
	require.Len(t, homologues, 2)
	assert.Equal(t, "CGOB", homologues[0].Attributes["source"])
	assert.Equal(t, 1, summary.Skipped)

	_, ok := mem.Find("Gene", "secondaryIdentifier", "YAL001C")
	assert.True(t, ok)
	_, ok = mem.Find("Gene", "primaryIdentifier", "CAGL0A00110g")
	assert.True(t, ok)
}

func TestDioptOrthologs(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		b.WriteString("# header line\n")
	}
	row := []string{"SGD:S000001855", "ACT1", "NCBITaxon:4932", "S. cerevisiae", "HGNC:132", "ACTB", "NCBITaxon:9606", "H. sapiens", "Compara,Ensembl", "2", "12", "Yes", "Yes"}
	b.WriteString(strings.Join(row, "\t") + "\n")
	b.WriteString(strings.Join(row, "\t") + "\n")

	mem, summary := load(t, "diopt-orthologs", b.String())

	assert.Equal(t, 2, summary.Rows)
	homologues := mem.ByClass("Homologue")
	require.Len(t, homologues, 1)
	assert.Equal(t, "Compara,Ensembl", homologues[0].Attributes["algorithms"])
	assert.Equal(t, "12", homologues[0].Attributes["algorithmsAttempted"])

	_, ok := mem.Find("Gene", "primaryIdentifier", "S000001855")
	assert.True(t, ok)
	_, ok = mem.Find("Gene", "secondaryIdentifier", "HGNC:132")
	assert.True(t, ok)
}

func TestProteinNtermini(t *testing.T) {
	mem, _ := load(t, "protein-ntermini", "YAL001C\tTFC3\tacetylated\t\t2\t123\tMSE\n")

	sites := mem.ByClass("ProteinModificationSite")
	require.Len(t, sites, 1)
	assert.Equal(t, "none", sites[0].Attributes["modificationType"])
	assert.Equal(t, "MSE", sites[0].Attributes["experimentalNterminalSequence"])
	assert.NotEmpty(t, sites[0].References["publication"])

	protein, ok := mem.Find("Protein", "secondaryIdentifier", "YAL001C")
	require.True(t, ok)
	assert.Equal(t, sites[0].References["protein"], protein.Identifier)
}

func TestComplementation(t *testing.T) {
	mem, _ := load(t, "complementation", "60\tYFL039C\tACT1\tACTB\tHGNC:132\thuman complements yeast\t1234\tBioGRID\tnote\n")

	complements := mem.ByClass("Complement")
	require.Len(t, complements, 2)
	assert.Equal(t, complements[0].References["gene"], complements[1].References["complement"])
	assert.Equal(t, complements[1].References["gene"], complements[0].References["complement"])
	assert.Equal(t, "note", complements[0].Attributes["notes"])
}

func TestRegulation(t *testing.T) {
	rows := strings.Join([]string{
		"S1\tTGT1\tS2\tREG1\ttranscription factor\ttranscription\tpositive\tECO:0000314\t100\tS288C_background_BY4741\t\thigh-throughput",
		"S1\tTGT1\tS2\tREG1\ttranscription factor\ttranscription\tpositive\tECO:0000314\t101\tweird\t\thigh-throughput",
	}, "\n")
	mem, summary := load(t, "regulation", rows)

	assert.Equal(t, 1, summary.Annotations)
	regs := mem.ByClass("Regulation")
	require.Len(t, regs, 1)
	assert.Equal(t, "REG1_binding_site", regs[0].Attributes["name"])
	assert.Equal(t, "BY4741", regs[0].Attributes["strainBackground"])
	assert.Len(t, regs[0].Collections["publications"], 2)

	eco := mem.ByClass("ECOTerm")
	require.Len(t, eco, 1)
	assert.Equal(t, "ECO:0000314", eco[0].Attributes["identifier"])
	assert.Len(t, mem.ByClass("RegulationEvidence"), 1)
}

func TestChromosomalFeatures(t *testing.T) {
	mem, _ := load(t, "chromosomal-features", "S000001855\tACT1\tABY1|END7\tORF\tVI\t1\t2\tW\tS1\t\tActin\n")

	gene, ok := mem.Find("Gene", "primaryIdentifier", "S000001855")
	require.True(t, ok)
	assert.Equal(t, "ABY1 END7", gene.Attributes["sgdAlias"])
	assert.Equal(t, "Actin", gene.Attributes["briefDescription"])
}

func TestHomologSources(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		input      string
		homologues int
		skipped    int
		genes      map[string]string
	}{
		{
			name:       "cgob one species per column",
			source:     "cgob-homologs",
			input:      "YAL001C\tC1_00010W\tCAWG_00001\tCD36_00010\tCPAR2_100010\nYAL002W\tC1_00020C\t---\t---\tCPAR2_100020\n---\t---\t---\t---\t---\n",
			homologues: 12,
			genes: map[string]string{
				"YAL001C":      "secondaryIdentifier",
				"C1_00010W":    "primaryIdentifier",
				"CPAR2_100020": "primaryIdentifier",
			},
		},
		{
			name:       "pombe several orthologs per row",
			source:     "pombe-homologs",
			input:      "YAL001C\tSPAC1F7.01c|SPBC2G2.02\nYAL002W\tNONE\nYAL003W\tSPAC1F7.01c\n",
			homologues: 6,
			genes: map[string]string{
				"YAL002W":     "secondaryIdentifier",
				"SPBC2G2.02":  "primaryIdentifier",
				"SPAC1F7.01c": "primaryIdentifier",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, summary := load(t, tt.source, tt.input)

			assert.Equal(t, tt.skipped, summary.Skipped)
			homologues := mem.ByClass("Homologue")
			assert.Len(t, homologues, tt.homologues)
			for _, h := range homologues {
				assert.Equal(t, "homologue", h.Attributes["type"])
				assert.NotEqual(t, h.References["gene"], h.References["homologue"])
			}
			for id, index := range tt.genes {
				_, ok := mem.Find("Gene", index, id)
				assert.True(t, ok, id)
			}
		})
	}
}

func TestHomologGenes(t *testing.T) {
	mem, _ := load(t, "homolog-genes", "C1_00010W\tTFC3\torf19.1|IPF1\tORF\tChr1\t1\t99\tW\tCAL0001\t\tTranscription factor\n")

	gene, ok := mem.Find("Gene", "primaryIdentifier", "C1_00010W")
	require.True(t, ok)
	assert.Equal(t, "TFC3", gene.Attributes["symbol"])
	assert.Equal(t, "orf19.1 IPF1", gene.Attributes["sgdAlias"])
	assert.Equal(t, "Transcription factor", gene.Attributes["briefDescription"])
	assert.Empty(t, gene.References["organism"])
}

func TestInteractions(t *testing.T) {
	rows := strings.Join([]string{
		"S1\tS2\tphysical interactions\tTwo-hybrid\tBait-Hit\tBioGRID\thigh-throughput\t\t\tSmith J (2001)\t123\tS000100\tseen twice",
		"S1\tS2\tphysical interactions\tAffinity Capture-MS\tHit-Bait\tBioGRID\tmanually curated\tphosphorylation\t\tSmith J (2001)\t123\tS000100\t",
		"S3\tS3\tgenetic interactions\tSynthetic Lethality\tBait-Hit\tBioGRID\tmanually curated\t\tinviable\tDoe A (2005)\t\tS000200\t",
	}, "\n")
	mem, summary := load(t, "interactions", rows)

	assert.Equal(t, 0, summary.Skipped)
	assert.Len(t, mem.ByClass("Interaction"), 3)
	assert.Len(t, mem.ByClass("InteractionDetail"), 6)
	assert.Len(t, mem.ByClass("InteractionTerm"), 3)

	experiments := mem.ByClass("InteractionExperiment")
	require.Len(t, experiments, 2)
	assert.Equal(t, "Smith J (2001)-123-Two-hybrid", experiments[0].Attributes["name"])
	assert.NotEmpty(t, experiments[0].References["publication"])
	assert.Equal(t, experiments[0].References["publication"], experiments[1].References["publication"])
	assert.Len(t, collection(mem, experiments[0].Identifier, "interactionDetectionMethods"), 1)

	s1, ok := mem.Find("Gene", "primaryIdentifier", "S1")
	require.True(t, ok)
	s2, ok := mem.Find("Gene", "primaryIdentifier", "S2")
	require.True(t, ok)

	forward := collection(mem, s1.Identifier, "interactions")
	reverse := collection(mem, s2.Identifier, "interactions")
	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)
	assert.NotEqual(t, forward[0], reverse[0])

	roles := map[string][]string{}
	for _, d := range mem.ByClass("InteractionDetail") {
		roles[d.References["interaction"]] = append(roles[d.References["interaction"]], d.Attributes["role1"])
		if d.Attributes["type"] == "genetic interactions" {
			assert.Equal(t, "genetic", d.Attributes["relationshipType"])
			assert.Equal(t, "inviable", d.Attributes["phenotype"])
			assert.Empty(t, d.References["experiment"])
		} else {
			assert.Equal(t, "physical", d.Attributes["relationshipType"])
			assert.NotEmpty(t, d.References["experiment"])
		}
	}
	assert.Equal(t, []string{"Bait", "Hit"}, roles[forward[0]])
	assert.Equal(t, []string{"Hit", "Bait"}, roles[reverse[0]])

	for _, i := range mem.ByClass("Interaction") {
		if i.Identifier == forward[0] {
			assert.Equal(t, s1.Identifier, i.References["participant1"])
			assert.Equal(t, s2.Identifier, i.References["participant2"])
		}
		assert.Empty(t, i.Attributes["participants"])
	}
}

func TestComplexes(t *testing.T) {
	rows := strings.Join([]string{
		"CPX-1\tEBI-1\tSC1\thistone acetylation\tten subunits\tNuA4 histone acetyltransferase complex\tECO:0000353\tNuA4 complex|NuA4 HAT\t111|222\tGO:0000123|GO:0035267",
		"CPX-2\tEBI-2\tSC2\t\t\tMini complex\tECO:0000353\t\t\t",
	}, "\n")
	mem, summary := load(t, "complexes", rows)

	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 2, summary.Annotations)

	cpx, ok := mem.Find("Complex", "accession", "CPX-1")
	require.True(t, ok)
	assert.Equal(t, "EBI-1", cpx.Attributes["identifier"])
	assert.Equal(t, "histone acetylation", cpx.Attributes["function"])
	assert.Len(t, cpx.Collections["publications"], 2)
	assert.Len(t, collection(mem, cpx.Identifier, "synonyms"), 2)
	assert.Len(t, collection(mem, cpx.Identifier, "goAnnotation"), 2)

	mini, ok := mem.Find("Complex", "accession", "CPX-2")
	require.True(t, ok)
	assert.Empty(t, mem.CollectionsOf(mini.Identifier))

	eco := mem.ByClass("ECOTerm")
	require.Len(t, eco, 1)
	assert.Equal(t, "ECO:0000353", eco[0].Attributes["identifier"])
	for _, ann := range mem.ByClass("GOAnnotation") {
		assert.Equal(t, cpx.Identifier, ann.References["subject"])
	}
}

func TestComplexInteractions(t *testing.T) {
	rows := strings.Join([]string{
		"CPX-1\tS1\tS2\t10\t50\t1\tenzyme\tprotein",
		"CPX-1\tS3\t\t\t\t2\tsubunit\tprotein",
	}, "\n")
	mem, summary := load(t, "complex-interactions", rows)

	assert.Equal(t, 0, summary.Skipped)
	cpx, ok := mem.Find("Complex", "accession", "CPX-1")
	require.True(t, ok)
	assert.Len(t, collection(mem, cpx.Identifier, "allInteractors"), 2)
	assert.Len(t, collection(mem, cpx.Identifier, "interactions"), 2)

	interactions := mem.ByClass("Interaction")
	require.Len(t, interactions, 2)
	assert.NotEmpty(t, interactions[0].References["participant2"])
	assert.Empty(t, interactions[1].References["participant2"])
	assert.Equal(t, "10", interactions[0].Attributes["rangeStart"])

	interactors := mem.ByClass("Interactor")
	require.Len(t, interactors, 2)
	assert.Equal(t, "enzyme", interactors[0].Attributes["biologicalRole"])
	assert.Equal(t, "2", interactors[1].Attributes["stoichiometry"])
}
