// Copyright Abx Labs Ltd., 2026. All rights reserved.

package pattern

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

func testKB(t *testing.T) *kb.KB {
	t.Helper()
	k, err := kb.New([]types.GeneDefinition{
		{Canonical: "blaOXA-23", Category: types.CategoryCarbapenemase, Tier: types.TierCritical},
		{Canonical: "blaNDM-1", Category: types.CategoryCarbapenemase, Tier: types.TierCritical},
		{Canonical: "mcr-1", Category: types.CategoryColistin, Tier: types.TierCritical},
		{Canonical: "blaTEM-1", Category: types.CategoryESBL, Tier: types.TierHigh},
		{Canonical: "adeB", Category: types.CategoryEfflux, Tier: types.TierMedium},
		{Canonical: "qacE", Category: types.CategoryBiocide, Tier: types.TierEnvironmental},
		{Canonical: "merA", Category: types.CategoryMetal, Tier: types.TierEnvironmental},
	})
	if err != nil {
		t.Fatalf("building test registry: %v", err)
	}
	return k
}

func hit(gene string, cat types.Category, tier types.RiskTier, dbs ...string) types.CanonicalHit {
	h := types.CanonicalHit{
		Gene:     types.GeneDefinition{Canonical: gene, Category: cat, Tier: tier},
		Identity: 99, Coverage: 99,
	}
	for _, db := range dbs {
		h.Merged = append(h.Merged, types.RawHit{Gene: gene, Database: db})
	}
	return h
}

func profile(id string, hits ...types.CanonicalHit) types.SampleProfile {
	p := types.SampleProfile{SampleID: id, Hits: hits, Flags: map[string]bool{}}
	for i := range p.Hits {
		p.Hits[i].SampleID = id
		if p.Hits[i].Gene.Tier.Severity() > p.Tier.Severity() {
			p.Tier = p.Hits[i].Gene.Tier
		}
		p.Categories = append(p.Categories, p.Hits[i].Gene.Category)
	}
	if p.Tier == "" {
		p.Tier = types.TierNone
	}
	return p
}

// testCohort builds three profiles: S1 carries carbapenemase+colistin,
// S2 carries carbapenemase only, S3 carries efflux only.
func testCohort() map[string]types.SampleProfile {
	return map[string]types.SampleProfile{
		"S1": profile("S1",
			hit("blaOXA-23", types.CategoryCarbapenemase, types.TierCritical, "ncbi", "card"),
			hit("mcr-1", types.CategoryColistin, types.TierCritical, "card"),
		),
		"S2": profile("S2",
			hit("blaOXA-23", types.CategoryCarbapenemase, types.TierCritical, "ncbi"),
			hit("blaNDM-1", types.CategoryCarbapenemase, types.TierCritical, "ncbi"),
		),
		"S3": profile("S3",
			hit("adeB", types.CategoryEfflux, types.TierMedium, "card"),
		),
	}
}

func testEngine(t *testing.T, rules *RulesFile) *Engine {
	t.Helper()
	return New(testKB(t), rules, types.PatternConfig{MinSupport: 1, TopPairs: 10})
}

func TestDiscoverMatchesDeclaredRules(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())

	var combo *types.Pattern
	for i := range a.Patterns {
		if a.Patterns[i].Name == "carbapenemase_plus_colistin" {
			combo = &a.Patterns[i]
		}
	}
	if combo == nil {
		t.Fatalf("carbapenemase_plus_colistin not discovered; got %+v", a.Patterns)
	}
	if combo.Count != 1 || len(combo.Samples) != 1 || combo.Samples[0] != "S1" {
		t.Errorf("pattern counts = %d %v, want exactly S1", combo.Count, combo.Samples)
	}
	if combo.Severity != types.TierCritical {
		t.Errorf("severity = %s, want CRITICAL (max of constituent categories)", combo.Severity)
	}

	// Rules nobody satisfies stay out.
	for _, p := range a.Patterns {
		if p.Name == "biocide_metal_coselection" {
			t.Error("unsatisfied rule emitted a pattern")
		}
	}
}

func TestDiscoverMinSupport(t *testing.T) {
	rules := &RulesFile{Rules: []Rule{
		{Name: "carb", Categories: []types.Category{types.CategoryCarbapenemase}, MinSupport: 3},
	}}
	a := testEngine(t, rules).Discover(testCohort())
	if len(a.Patterns) != 0 {
		t.Errorf("patterns = %+v, want none (support 2 < 3)", a.Patterns)
	}

	rules.Rules[0].MinSupport = 2
	a = testEngine(t, rules).Discover(testCohort())
	if len(a.Patterns) != 1 || a.Patterns[0].Count != 2 {
		t.Errorf("patterns = %+v, want one with count 2", a.Patterns)
	}
}

func TestDiscoverFlagRule(t *testing.T) {
	cohort := testCohort()
	s1 := cohort["S1"]
	s1.Flags[types.FlagMultidrug] = true
	cohort["S1"] = s1

	a := testEngine(t, Defaults()).Discover(cohort)

	found := false
	for _, p := range a.Patterns {
		if p.Name == "multidrug" {
			found = true
			if p.Count != 1 || p.Samples[0] != "S1" {
				t.Errorf("multidrug pattern = %+v, want S1 only", p)
			}
			if p.Severity != types.TierHigh {
				t.Errorf("severity = %s, want explicit HIGH", p.Severity)
			}
		}
	}
	if !found {
		t.Error("flag-based multidrug rule not discovered")
	}
}

func TestSeverityDerivation(t *testing.T) {
	tests := []struct {
		name  string
		rules *RulesFile
		rule  Rule
		want  types.RiskTier
	}{
		{
			name:  "explicit override wins",
			rules: &RulesFile{},
			rule:  Rule{Severity: types.TierMedium, Categories: []types.Category{types.CategoryCarbapenemase}},
			want:  types.TierMedium,
		},
		{
			name:  "rule file tier table consulted before registry",
			rules: &RulesFile{CategoryTiers: map[types.Category]types.RiskTier{types.CategoryEfflux: types.TierHigh}},
			rule:  Rule{Categories: []types.Category{types.CategoryEfflux}},
			want:  types.TierHigh,
		},
		{
			name:  "registry supplies the rest",
			rules: &RulesFile{},
			rule:  Rule{Categories: []types.Category{types.CategoryEfflux, types.CategoryESBL}},
			want:  types.TierHigh,
		},
		{
			name:  "unknown category contributes nothing",
			rules: &RulesFile{},
			rule:  Rule{Categories: []types.Category{types.Category("made_up")}},
			want:  types.TierNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(t, tt.rules)
			if got := e.severityFor(tt.rule); got != tt.want {
				t.Errorf("severityFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPatternOrdering(t *testing.T) {
	rules := &RulesFile{Rules: []Rule{
		{Name: "efflux_only", Categories: []types.Category{types.CategoryEfflux}},
		{Name: "any_carb", Categories: []types.Category{types.CategoryCarbapenemase}},
		{Name: "also_carb", Categories: []types.Category{types.CategoryCarbapenemase}},
	}}
	a := testEngine(t, rules).Discover(testCohort())

	var names []string
	for _, p := range a.Patterns {
		names = append(names, p.Name)
	}
	// CRITICAL patterns before MEDIUM; equal severity and count fall back
	// to name order.
	want := []string{"also_carb", "any_carb", "efflux_only"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("pattern order = %v, want %v", names, want)
	}
}

func TestPrevalence(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())

	if len(a.Prevalence) != 4 {
		t.Fatalf("prevalence rows = %d, want 4", len(a.Prevalence))
	}
	top := a.Prevalence[0]
	if top.Gene != "blaOXA-23" || top.Count != 2 {
		t.Errorf("top row = %s/%d, want blaOXA-23 carried by 2", top.Gene, top.Count)
	}
	if top.Percent != 66.7 {
		t.Errorf("percent = %v, want 66.7", top.Percent)
	}
	if !reflect.DeepEqual(top.Samples, []string{"S1", "S2"}) {
		t.Errorf("carriers = %v, want sorted [S1 S2]", top.Samples)
	}
	if top.Category != types.CategoryCarbapenemase || top.Tier != types.TierCritical {
		t.Errorf("definition fields lost: %s/%s", top.Category, top.Tier)
	}
}

func TestGeneCarriersSorted(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())
	got := a.GeneCarriers["blaOXA-23"]
	if !reflect.DeepEqual(got, []string{"S1", "S2"}) {
		t.Errorf("carriers = %v, want [S1 S2]", got)
	}
}

func TestTopPairs(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())

	want := []types.GenePair{
		{GeneA: "blaNDM-1", GeneB: "blaOXA-23", Count: 1},
		{GeneA: "blaOXA-23", GeneB: "mcr-1", Count: 1},
	}
	if !reflect.DeepEqual(a.TopPairs, want) {
		t.Errorf("pairs = %+v, want %+v", a.TopPairs, want)
	}

	e := New(testKB(t), Defaults(), types.PatternConfig{TopPairs: 1})
	a = e.Discover(testCohort())
	if len(a.TopPairs) != 1 {
		t.Errorf("pairs = %d, want truncated to 1", len(a.TopPairs))
	}
}

func TestCarbapenemaseCombos(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())

	want := map[string]int{
		"blaOXA-23":          1,
		"blaNDM-1+blaOXA-23": 1,
	}
	if !reflect.DeepEqual(a.CarbapenemaseCombos, want) {
		t.Errorf("combos = %v, want %v", a.CarbapenemaseCombos, want)
	}
}

func TestTypingDistributions(t *testing.T) {
	cohort := testCohort()
	s1, s2 := cohort["S1"], cohort["S2"]
	s1.Typing = &types.Typing{Scheme: "abaumannii_2", SequenceType: "2", KLocus: "KL3"}
	s2.Typing = &types.Typing{Scheme: "abaumannii_2", SequenceType: "2"}
	cohort["S1"], cohort["S2"] = s1, s2

	a := testEngine(t, Defaults()).Discover(cohort)
	if a.STDistribution["2"] != 2 {
		t.Errorf("ST distribution = %v, want ST 2 counted twice", a.STDistribution)
	}
	if a.KLocusDistribution["KL3"] != 1 {
		t.Errorf("K locus distribution = %v", a.KLocusDistribution)
	}
}

func TestDatabaseCoverage(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(testCohort())

	// S1 blaOXA-23 backed by ncbi+card, S1 mcr-1 by card, S2 both genes by
	// ncbi, S3 adeB by card.
	want := map[string]int{"ncbi": 3, "card": 3}
	if !reflect.DeepEqual(a.DatabaseCoverage, want) {
		t.Errorf("database coverage = %v, want %v", a.DatabaseCoverage, want)
	}
}

func TestDiscoverEmptyCohort(t *testing.T) {
	a := testEngine(t, Defaults()).Discover(nil)
	if len(a.Patterns) != 0 || len(a.Prevalence) != 0 || len(a.TopPairs) != 0 {
		t.Errorf("empty cohort produced output: %+v", a)
	}
}

// --- rules file ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		file     RulesFile
		problems int
	}{
		{"valid defaults", *Defaults(), 0},
		{"missing name", RulesFile{Rules: []Rule{{Categories: []types.Category{"x"}}}}, 1},
		{"duplicate name", RulesFile{Rules: []Rule{
			{Name: "a", Categories: []types.Category{"x"}},
			{Name: "a", Categories: []types.Category{"x"}},
		}}, 1},
		{"no matcher", RulesFile{Rules: []Rule{{Name: "a"}}}, 1},
		{"flag rule without severity", RulesFile{Rules: []Rule{{Name: "a", Flag: "multidrug"}}}, 1},
		{"bad severity", RulesFile{Rules: []Rule{
			{Name: "a", Categories: []types.Category{"x"}, Severity: "SEVERE"},
		}}, 1},
		{"bad tier table", RulesFile{CategoryTiers: map[types.Category]types.RiskTier{"x": "SEVERE"}}, 1},
		{"negative support", RulesFile{Rules: []Rule{
			{Name: "a", Categories: []types.Category{"x"}, MinSupport: -1},
		}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.Validate(); len(got) != tt.problems {
				t.Errorf("problems = %v, want %d", got, tt.problems)
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	const doc = `
category_tiers:
  efflux: HIGH
rules:
  - name: pumped_up
    categories: [efflux]
    min_support: 2
    note: efflux systems everywhere
`
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	rf, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rf.Rules) != 1 || rf.Rules[0].Name != "pumped_up" || rf.Rules[0].MinSupport != 2 {
		t.Errorf("rules = %+v", rf.Rules)
	}
	if rf.CategoryTiers[types.CategoryEfflux] != types.TierHigh {
		t.Errorf("tier table = %v", rf.CategoryTiers)
	}
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	rf, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules(\"\") error = %v", err)
	}
	if len(rf.Rules) == 0 {
		t.Error("default rule set is empty")
	}
}

func TestLoadRulesRejects(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  - categories: [x]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(bad); err == nil {
		t.Error("LoadRules() accepted a nameless rule")
	}

	if _, err := LoadRules(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadRules() accepted a missing file")
	}
}
