package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/abxlab/amrscope/pkg/types"
)

func sampleDataset() *types.CohortDataset {
	return &types.CohortDataset{
		RunID:           "run-42",
		CreatedAt:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		TotalSamples:    3,
		IncludedSamples: 2,
		Profiles: map[string]types.SampleProfile{
			"S1": {SampleID: "S1", Tier: types.TierCritical},
			"S2": {SampleID: "S2", Tier: types.TierMedium},
		},
		Patterns: []types.Pattern{
			{
				Name:     "carbapenemase_plus_colistin",
				Severity: types.TierCritical,
				Count:    1,
				Samples:  []string{"S1"},
				Note:     "last-line agents compromised together",
			},
		},
		Prevalence: []types.GenePrevalence{
			{Gene: "blaOXA-23", Category: types.CategoryCarbapenemase,
				Tier: types.TierCritical, Count: 2, Percent: 100.0},
		},
		STDistribution:      map[string]int{"2": 2},
		KLocusDistribution:  map[string]int{"KL3": 1},
		CarbapenemaseCombos: map[string]int{"blaNDM-1+blaOXA-23": 1},
		Diagnostics: types.Diagnostics{
			Excluded:        []types.ExcludedSample{{SampleID: "S9", Reason: "unreadable"}},
			FailedFiles:     []string{"S9_mlst.json: invalid character 'g'"},
			UnresolvedGenes: map[string]int{"orfX": 2},
			RejectedHits:    4,
		},
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleDataset()); err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# AMR cohort summary",
		"Run: `run-42`",
		"2 included of 3 discovered",
		"| CRITICAL | 1 |",
		"| MEDIUM | 1 |",
		"| carbapenemase_plus_colistin | CRITICAL | 1 |",
		"| blaOXA-23 | carbapenemase | CRITICAL | 2 | 100.0 |",
		"| ST2 | 2 |",
		"| KL3 | 1 |",
		"| blaNDM-1+blaOXA-23 | 1 |",
		"Rejected hits (below thresholds): 4",
		"Unparseable files: 1",
		"- `S9`: unreadable",
		"- S9_mlst.json: invalid character 'g'",
		"- `orfX` (2 occurrence(s))",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n--- full output ---\n%s", want, out)
		}
	}

	// Tiers with no samples stay out of the table.
	if strings.Contains(out, "| LOW |") {
		t.Error("summary lists an empty tier row")
	}
}

func TestWriteMarkdownEmptySections(t *testing.T) {
	ds := &types.CohortDataset{
		RunID:     "run-0",
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, ds); err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	out := buf.String()

	for _, absent := range []string{
		"## Co-occurrence patterns",
		"## Most prevalent genes",
		"## Sequence types",
		"## Capsule loci",
	} {
		if strings.Contains(out, absent) {
			t.Errorf("empty dataset rendered section %q", absent)
		}
	}
	if !strings.Contains(out, "## Diagnostics") {
		t.Error("diagnostics section is always expected")
	}
}
