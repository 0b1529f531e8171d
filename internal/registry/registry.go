// Package registry holds the static catalog of knowledge API endpoints
// consulted during the KNOWLEDGE phase (§3, §4.5 Step A) and scores them
// against an objective to select the top candidates for fetching.
package registry

import (
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/dnnyngyen/phasecore/internal/types"
	"github.com/dnnyngyen/phasecore/internal/worker"
)

// Catalog is the compiled-in set of endpoints, optionally pruned by an
// on-disk overlay that can disable entries (it cannot add any). The catalog
// itself is read-only at runtime;
// scoring never mutates an entry.
type Catalog struct {
	entries []types.APIEndpoint
}

// NewCatalog builds a Catalog from the static entries, skipping any marked
// Disabled.
func NewCatalog(entries []types.APIEndpoint) *Catalog {
	c := &Catalog{}
	for _, e := range entries {
		if !e.Disabled {
			c.entries = append(c.entries, e)
		}
	}
	return c
}

// overlayFile is the on-disk shape for registry.yaml: a map from endpoint
// name to the single field an operator may override.
type overlayFile struct {
	Entries map[string]struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"entries"`
}

// LoadOverlay applies the disable-only overlay at path onto the static
// entries before constructing the Catalog. A missing path is not an error:
// the static catalog is used unmodified.
func LoadOverlay(path string, staticEntries []types.APIEndpoint) (*Catalog, error) {
	if path == "" {
		return NewCatalog(staticEntries), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCatalog(staticEntries), nil
	}
	if err != nil {
		return nil, err
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}

	merged := make([]types.APIEndpoint, len(staticEntries))
	copy(merged, staticEntries)
	for i, e := range merged {
		if o, ok := overlay.Entries[e.Name]; ok {
			merged[i].Disabled = o.Disabled
		}
	}
	return NewCatalog(merged), nil
}

// Scored pairs an endpoint with its match score against a query.
type Scored struct {
	Endpoint types.APIEndpoint
	Score    float64
}

// Select scores every enabled entry against objective and role, and returns
// the top k by descending score (ties broken by catalog order, which is
// itself declaration order — deterministic, no clock or randomness
// involved). Scoring fans out across a worker.Pool: each entry's score is
// pure CPU work independent of the others, the same shape the reference
// pool was built for.
func (c *Catalog) Select(objective string, role types.Role, k int) []Scored {
	terms := tokenize(objective)
	pool := worker.NewPool[float64](0)

	results := worker.Process[types.APIEndpoint, float64](pool, c.entries, func(e types.APIEndpoint) (float64, error) {
		return keywordScore(terms, e.Keywords) + roleAffinity(role, e.Category) + e.Reliability*0.2, nil
	})

	scored := make([]Scored, 0, len(results))
	for i, r := range results {
		// Reliability alone never qualifies an entry: it needs a keyword
		// match or a role affinity.
		if keywordScore(terms, c.entries[i].Keywords)+roleAffinity(role, c.entries[i].Category) <= 0 {
			continue
		}
		scored = append(scored, Scored{Endpoint: c.entries[i], Score: r.Value})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// tokenize lowercases and splits s on non-letter/non-digit boundaries,
// mirroring the reference search index's term extraction.
func tokenize(s string) map[string]bool {
	terms := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			terms[strings.ToLower(b.String())] = true
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

func keywordScore(queryTerms map[string]bool, keywords []string) float64 {
	var score float64
	for _, kw := range keywords {
		if queryTerms[strings.ToLower(kw)] {
			score++
		}
	}
	return score
}

// roleCategoryAffinity maps a role to the registry categories it naturally
// draws from; an endpoint in one of those categories gets a small boost.
var roleCategoryAffinity = map[types.Role][]string{
	types.RoleResearcher:  {"search", "docs", "reference"},
	types.RoleAnalyzer:    {"data", "reference"},
	types.RoleCoder:       {"docs", "package_registry"},
	types.RoleSynthesizer: {"search", "data"},
}

func roleAffinity(role types.Role, category string) float64 {
	for _, c := range roleCategoryAffinity[role] {
		if c == category {
			return 0.5
		}
	}
	return 0
}
