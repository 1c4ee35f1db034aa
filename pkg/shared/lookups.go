// Package shared holds the lookups that live for the whole process rather
// than one pipeline run: organisms, publications, data sources and data sets.
package shared

import (
	"context"
	"strings"
	"sync"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/resolver"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

const (
	ClassOrganism    = "Organism"
	ClassPublication = "Publication"
	ClassDataSource  = "DataSource"
	ClassDataSet     = "DataSet"
)

// Lookups is safe for use by several pipelines.
type Lookups struct {
	mu       sync.Mutex
	resolver *resolver.Resolver
	taxa     map[string]string
}

func NewLookups(factory *models.Factory) *Lookups {
	return &Lookups{
		resolver: resolver.New(factory),
		taxa:     defaultTaxa(),
	}
}

// Organism returns the organism for an NCBI taxon id.
func (l *Lookups) Organism(taxonID string) *models.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolver.Resolve(ClassOrganism, "taxonId", taxonID)
}

// Publication returns the publication for a PubMed id.
func (l *Lookups) Publication(pubMedID string) *models.Item {
	return l.PublicationRef(pubMedID, "")
}

// PublicationRef returns the publication cited by a PubMed id, a
// cross-reference id such as an SGD_REF or GO_REF, or both. Publications are
// keyed by PubMed id when there is one; the first cross-reference seen for a
// PubMed id is kept as its pubXrefId. Without a PubMed id the publication is
// keyed by pubXrefId alone.
func (l *Lookups) PublicationRef(pubMedID, xref string) *models.Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	xref = strings.TrimSpace(xref)
	if strings.TrimSpace(pubMedID) == "" {
		return l.resolver.Resolve(ClassPublication, "pubXrefId", xref)
	}
	return l.resolver.ResolveWith(ClassPublication, "pubMedId", pubMedID, func(f *models.Factory, class, key string) *models.Item {
		pub := f.New(class)
		pub.SetAttribute("pubMedId", key)
		if xref != "" {
			pub.SetAttribute("pubXrefId", xref)
		}
		return pub
	})
}

func (l *Lookups) DataSource(name string) *models.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolver.Resolve(ClassDataSource, "name", name)
}

// DataSet returns the data set with title, owned by source.
func (l *Lookups) DataSet(title string, source *models.Item) *models.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	ds := l.resolver.Resolve(ClassDataSet, "name", title)
	if ds != nil {
		ds.SetReference("dataSource", source)
	}
	return ds
}

// TaxonByName maps an organism name as written in homolog files to its
// taxon id.
func (l *Lookups) TaxonByName(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	taxon, ok := l.taxa[strings.TrimSpace(name)]
	return taxon, ok
}

// RegisterTaxon adds or replaces an organism name mapping.
func (l *Lookups) RegisterTaxon(name, taxonID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.taxa[strings.TrimSpace(name)] = taxonID
}

func (l *Lookups) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolver.Len()
}

// Flush stores every lookup item that is not stored yet. Items are stored at
// most once however often Flush is called.
func (l *Lookups) Flush(ctx context.Context, w *store.Writer) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "shared.Lookups.Flush")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	stored := 0
	for _, item := range l.resolver.Entities() {
		if item.Stored() {
			continue
		}
		if err := w.Store(ctx, item); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func defaultTaxa() map[string]string {
	return map[string]string{
		"Saccharomyces cerevisiae":                         "4932",
		"A. capsulatus G186AR":                             "447093",
		"A. capsulatus NAm1":                               "339724",
		"A. flavus NRRL3357":                               "332952",
		"A. fumigatus Af293":                               "330879",
		"A. nidulans FGSC A4":                              "227321",
		"A. niger ATCC 1015":                               "380704",
		"Aspergillus terreus NIH2624":                      "341663",
		"C. immitis H538.4":                                "396776",
		"C. immitis RS":                                    "246410",
		"C. posadasii C735 delta SOWgp":                    "222929",
		"N. fischeri NRRL 181":                             "331117",
		"P. marneffei ATCC 18224":                          "441960",
		"Candida albicans SC5314":                          "237561",
		"Schizosaccharomyces pombe 972h-":                  "284812",
		"M. oryzae 70-15":                                  "242507",
		"N. crassa OR74A":                                  "367110",
		"C. gattii R265":                                   "294750",
		"C. gattii WM276":                                  "367775",
		"C. neoformans var. grubii H99":                    "235443",
		"Cryptococcus neoformans var. neoformans B-3501A": "283643",
		"C. neoformans var. neoformans JEC21":              "214684",
		"U. maydis 521":                                    "237631",
	}
}
