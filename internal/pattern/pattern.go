// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package pattern discovers cross-genome structure in a finished cohort:
// declared category co-occurrences, per-gene prevalence, frequent gene
// pairs, and typing distributions. It reads profiles and never mutates
// them.
package pattern

import (
	"math"
	"sort"
	"strings"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

// Engine runs rule matching and the derived tabulations over a cohort.
type Engine struct {
	kb    *kb.KB
	rules *RulesFile
	cfg   types.PatternConfig
}

// New builds an engine from a loaded registry and rule set.
func New(k *kb.KB, rules *RulesFile, cfg types.PatternConfig) *Engine {
	if rules == nil {
		rules = Defaults()
	}
	return &Engine{kb: k, rules: rules, cfg: cfg}
}

// Analysis holds everything the engine derives from one cohort pass.
type Analysis struct {
	Patterns            []types.Pattern
	Prevalence          []types.GenePrevalence
	GeneCarriers        map[string][]string
	TopPairs            []types.GenePair
	CarbapenemaseCombos map[string]int
	STDistribution      map[string]int
	KLocusDistribution  map[string]int
	DatabaseCoverage    map[string]int
}

// Discover runs a single read-only pass over the finished profiles. The
// result is fully sorted, so identical cohorts yield identical analyses.
func (e *Engine) Discover(profiles map[string]types.SampleProfile) *Analysis {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	a := &Analysis{
		GeneCarriers:        make(map[string][]string),
		CarbapenemaseCombos: make(map[string]int),
		STDistribution:      make(map[string]int),
		KLocusDistribution:  make(map[string]int),
		DatabaseCoverage:    make(map[string]int),
	}

	pairCounts := make(map[types.GenePair]int)
	for _, id := range ids {
		p := profiles[id]
		e.tabulate(a, &p, pairCounts)
	}

	a.Patterns = e.matchRules(profiles, ids)
	a.Prevalence = prevalenceRows(a.GeneCarriers, profiles, len(ids))
	a.TopPairs = topPairs(pairCounts, e.cfg.TopPairs)
	return a
}

// tabulate folds one profile into the per-gene and typing tallies.
func (e *Engine) tabulate(a *Analysis, p *types.SampleProfile, pairCounts map[types.GenePair]int) {
	var carbapenemases []string
	genes := make([]string, 0, len(p.Hits))
	for _, h := range p.Hits {
		genes = append(genes, h.Gene.Canonical)
		a.GeneCarriers[h.Gene.Canonical] = append(a.GeneCarriers[h.Gene.Canonical], p.SampleID)
		if h.Gene.Category == types.CategoryCarbapenemase {
			carbapenemases = append(carbapenemases, h.Gene.Canonical)
		}
		for _, db := range hitDatabases(h) {
			a.DatabaseCoverage[db]++
		}
	}

	sort.Strings(genes)
	for i := 0; i < len(genes); i++ {
		for j := i + 1; j < len(genes); j++ {
			pairCounts[types.GenePair{GeneA: genes[i], GeneB: genes[j]}]++
		}
	}

	if len(carbapenemases) > 0 {
		sort.Strings(carbapenemases)
		a.CarbapenemaseCombos[strings.Join(carbapenemases, "+")]++
	}

	if p.Typing != nil {
		if p.Typing.SequenceType != "" {
			a.STDistribution[p.Typing.SequenceType]++
		}
		if p.Typing.KLocus != "" {
			a.KLocusDistribution[p.Typing.KLocus]++
		}
	}
}

// hitDatabases returns the distinct source databases backing one canonical
// hit, so each database is credited once per hit.
func hitDatabases(h types.CanonicalHit) []string {
	seen := make(map[string]bool, len(h.Merged))
	var dbs []string
	for _, r := range h.Merged {
		if r.Database == "" || seen[r.Database] {
			continue
		}
		seen[r.Database] = true
		dbs = append(dbs, r.Database)
	}
	return dbs
}

// matchRules evaluates every rule against every profile.
func (e *Engine) matchRules(profiles map[string]types.SampleProfile, ids []string) []types.Pattern {
	var patterns []types.Pattern
	for _, r := range e.rules.Rules {
		var satisfying []string
		for _, id := range ids {
			p := profiles[id]
			if e.satisfies(&p, r) {
				satisfying = append(satisfying, id)
			}
		}
		if len(satisfying) < e.minSupport(r) {
			continue
		}
		patterns = append(patterns, types.Pattern{
			Name:       r.Name,
			Categories: r.Categories,
			Severity:   e.severityFor(r),
			Count:      len(satisfying),
			Samples:    satisfying,
			Note:       r.Note,
		})
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if a, b := patterns[i].Severity.Severity(), patterns[j].Severity.Severity(); a != b {
			return a > b
		}
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Name < patterns[j].Name
	})
	return patterns
}

func (e *Engine) satisfies(p *types.SampleProfile, r Rule) bool {
	for _, c := range r.Categories {
		if !p.HasCategory(c) {
			return false
		}
	}
	if r.Flag != "" && !p.Flags[r.Flag] {
		return false
	}
	return true
}

func (e *Engine) minSupport(r Rule) int {
	if r.MinSupport > 0 {
		return r.MinSupport
	}
	if e.cfg.MinSupport > 0 {
		return e.cfg.MinSupport
	}
	return 1
}

// severityFor derives a pattern's severity: an explicit rule override wins,
// otherwise the highest tier among the rule's categories, with the rule
// file's tier table consulted before the registry.
func (e *Engine) severityFor(r Rule) types.RiskTier {
	if r.Severity != "" {
		return r.Severity
	}
	best := types.TierNone
	for _, c := range r.Categories {
		tier, ok := e.rules.CategoryTiers[c]
		if !ok {
			tier, ok = e.kb.CategoryTier(c)
		}
		if ok && tier.Severity() > best.Severity() {
			best = tier
		}
	}
	return best
}

// prevalenceRows builds the gene-centric table from the carrier index.
func prevalenceRows(carriers map[string][]string, profiles map[string]types.SampleProfile, total int) []types.GenePrevalence {
	defs := make(map[string]types.GeneDefinition)
	for _, p := range profiles {
		for _, h := range p.Hits {
			defs[h.Gene.Canonical] = h.Gene
		}
	}

	rows := make([]types.GenePrevalence, 0, len(carriers))
	for gene, samples := range carriers {
		sort.Strings(samples)
		var pct float64
		if total > 0 {
			pct = math.Round(float64(len(samples))/float64(total)*1000) / 10
		}
		def := defs[gene]
		rows = append(rows, types.GenePrevalence{
			Gene:     gene,
			Category: def.Category,
			Tier:     def.Tier,
			Count:    len(samples),
			Percent:  pct,
			Samples:  samples,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Gene < rows[j].Gene
	})
	return rows
}

// topPairs keeps the n most frequent same-sample gene pairs.
func topPairs(counts map[types.GenePair]int, n int) []types.GenePair {
	if n <= 0 {
		n = 10
	}
	pairs := make([]types.GenePair, 0, len(counts))
	for p, c := range counts {
		p.Count = c
		pairs = append(pairs, p)
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].GeneA != pairs[j].GeneA {
			return pairs[i].GeneA < pairs[j].GeneA
		}
		return pairs[i].GeneB < pairs[j].GeneB
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}
