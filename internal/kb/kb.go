// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package kb loads the curated gene registry and resolves reported gene
// identifiers to canonical definitions. The registry is an external YAML
// resource; adding genes or aliases is a data change, not a code change.
package kb

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.yaml.in/yaml/v3"

	"github.com/abxlab/amrscope/pkg/types"
)

// resolveCacheSize bounds the identifier memoization cache. Cohort runs
// resolve the same reported identifiers thousands of times.
const resolveCacheSize = 4096

// registryFile is the on-disk registry layout.
type registryFile struct {
	Genes []types.GeneDefinition `yaml:"genes"`
}

// KB is the loaded gene knowledge base. Immutable after construction and
// safe for concurrent use.
type KB struct {
	genes []types.GeneDefinition

	// byAlias maps normalized canonical names and aliases to an index
	// into genes.
	byAlias map[string]int

	// categoryTier maps each category present in the registry to the
	// highest tier among its genes.
	categoryTier map[types.Category]types.RiskTier

	// cache memoizes Resolve results by the raw identifier. The index -1
	// records a miss.
	cache *lru.Cache[string, int]
}

// LoadFile reads a registry YAML file without validating it. Use Lint to
// check the entries, or Load to do both.
func LoadFile(path string) ([]types.GeneDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	return rf.Genes, nil
}

// Load reads, validates, and indexes a registry YAML file.
func Load(path string) (*KB, error) {
	genes, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	k, err := New(genes)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return k, nil
}

// New validates the definitions and builds the lookup index.
func New(genes []types.GeneDefinition) (*KB, error) {
	if problems := Lint(genes); len(problems) > 0 {
		return nil, fmt.Errorf("%d registry problem(s): %s", len(problems), strings.Join(problems, "; "))
	}

	k := &KB{
		genes:        genes,
		byAlias:      make(map[string]int),
		categoryTier: make(map[types.Category]types.RiskTier),
	}
	for i, g := range genes {
		k.byAlias[NormalizeIdentifier(g.Canonical)] = i
		for _, a := range g.Aliases {
			k.byAlias[NormalizeIdentifier(a)] = i
		}
		if cur, ok := k.categoryTier[g.Category]; !ok || g.Tier.Severity() > cur.Severity() {
			k.categoryTier[g.Category] = g.Tier
		}
	}

	cache, err := lru.New[string, int](resolveCacheSize)
	if err != nil {
		return nil, fmt.Errorf("building resolve cache: %w", err)
	}
	k.cache = cache
	return k, nil
}

// Lint checks registry entries and returns every problem found, not just
// the first: empty canonical names, unknown tiers, empty categories, and
// aliases that resolve to two different genes.
func Lint(genes []types.GeneDefinition) []string {
	var problems []string
	owner := make(map[string]string) // normalized alias -> canonical name

	claim := func(alias, canonical string) {
		norm := NormalizeIdentifier(alias)
		if norm == "" {
			problems = append(problems, fmt.Sprintf("gene %q: alias %q normalizes to nothing", canonical, alias))
			return
		}
		if prev, ok := owner[norm]; ok && prev != canonical {
			problems = append(problems, fmt.Sprintf("alias %q maps to both %q and %q", alias, prev, canonical))
			return
		}
		owner[norm] = canonical
	}

	for i, g := range genes {
		if g.Canonical == "" {
			problems = append(problems, fmt.Sprintf("entry %d: empty canonical name", i))
			continue
		}
		if _, err := types.ParseRiskTier(string(g.Tier)); err != nil {
			problems = append(problems, fmt.Sprintf("gene %q: %v", g.Canonical, err))
		}
		if g.Category == "" {
			problems = append(problems, fmt.Sprintf("gene %q: empty category", g.Canonical))
		}
		claim(g.Canonical, g.Canonical)
		for _, a := range g.Aliases {
			claim(a, g.Canonical)
		}
	}
	return problems
}

// Resolve maps a reported gene identifier to its registry definition.
// Matching is case-insensitive and tolerant of formatting variants
// (blaOXA-23, OXA-23, oxa23, and tet(X) vs tetX all resolve alike).
// The second return is false when the identifier matches nothing.
func (k *KB) Resolve(identifier string) (types.GeneDefinition, bool) {
	if idx, ok := k.cache.Get(identifier); ok {
		if idx < 0 {
			return types.GeneDefinition{}, false
		}
		return k.genes[idx], true
	}

	idx := k.lookup(identifier)
	k.cache.Add(identifier, idx)
	if idx < 0 {
		return types.GeneDefinition{}, false
	}
	return k.genes[idx], true
}

func (k *KB) lookup(identifier string) int {
	norm := NormalizeIdentifier(identifier)
	if norm == "" {
		return -1
	}
	if idx, ok := k.byAlias[norm]; ok {
		return idx
	}

	// Beta-lactamase names circulate with and without the bla prefix:
	// OXA-23 is blaOXA-23.
	if strings.HasPrefix(norm, "bla") {
		if idx, ok := k.byAlias[norm[3:]]; ok {
			return idx
		}
	} else if idx, ok := k.byAlias["bla"+norm]; ok {
		return idx
	}
	return -1
}

// CategoryTier returns the highest tier among registry genes of the given
// category. The second return is false for categories the registry does
// not contain.
func (k *KB) CategoryTier(c types.Category) (types.RiskTier, bool) {
	t, ok := k.categoryTier[c]
	return t, ok
}

// Genes returns the registry entries sorted by category then canonical name,
// for listing and export.
func (k *KB) Genes() []types.GeneDefinition {
	out := make([]types.GeneDefinition, len(k.genes))
	copy(out, k.genes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Canonical < out[j].Canonical
	})
	return out
}

// Len returns the number of registry entries.
func (k *KB) Len() int {
	return len(k.genes)
}

// NormalizeIdentifier reduces a gene identifier to lowercase letters and
// digits, so case and punctuation variants compare equal.
func NormalizeIdentifier(identifier string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(identifier) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
