// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package report renders a cohort dataset for humans. It consumes the
// finished dataset and performs no resistance logic of its own.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/abxlab/amrscope/pkg/types"
)

// markdownTopGenes caps the prevalence table in the summary document.
const markdownTopGenes = 15

// WriteMarkdown renders the cohort summary as a Markdown document.
func WriteMarkdown(w io.Writer, ds *types.CohortDataset) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# AMR cohort summary\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", ds.RunID)
	fmt.Fprintf(&b, "- Created: %s\n", ds.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Samples: %d included of %d discovered\n\n",
		ds.IncludedSamples, ds.TotalSamples)

	writeTierTable(&b, ds)
	writePatternTable(&b, ds)
	writeGeneTable(&b, ds)
	writeTypingTables(&b, ds)
	writeDiagnostics(&b, ds)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTierTable(b *strings.Builder, ds *types.CohortDataset) {
	counts := make(map[types.RiskTier]int)
	for _, p := range ds.Profiles {
		counts[p.Tier]++
	}

	fmt.Fprintf(b, "## Risk tiers\n\n")
	fmt.Fprintf(b, "| Tier | Samples |\n|---|---|\n")
	for _, tier := range types.Tiers() {
		if counts[tier] == 0 {
			continue
		}
		fmt.Fprintf(b, "| %s | %d |\n", tier, counts[tier])
	}
	fmt.Fprintf(b, "\n")
}

func writePatternTable(b *strings.Builder, ds *types.CohortDataset) {
	if len(ds.Patterns) == 0 {
		return
	}
	fmt.Fprintf(b, "## Co-occurrence patterns\n\n")
	fmt.Fprintf(b, "| Pattern | Severity | Samples | Note |\n|---|---|---|---|\n")
	for _, p := range ds.Patterns {
		fmt.Fprintf(b, "| %s | %s | %d | %s |\n", p.Name, p.Severity, p.Count, p.Note)
	}
	fmt.Fprintf(b, "\n")
}

func writeGeneTable(b *strings.Builder, ds *types.CohortDataset) {
	if len(ds.Prevalence) == 0 {
		return
	}
	rows := ds.Prevalence
	if len(rows) > markdownTopGenes {
		rows = rows[:markdownTopGenes]
	}
	fmt.Fprintf(b, "## Most prevalent genes\n\n")
	fmt.Fprintf(b, "| Gene | Category | Tier | Samples | %% |\n|---|---|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s | %s | %d | %.1f |\n",
			r.Gene, r.Category, r.Tier, r.Count, r.Percent)
	}
	fmt.Fprintf(b, "\n")
}

func writeTypingTables(b *strings.Builder, ds *types.CohortDataset) {
	if len(ds.STDistribution) > 0 {
		fmt.Fprintf(b, "## Sequence types\n\n")
		fmt.Fprintf(b, "| ST | Samples |\n|---|---|\n")
		for _, st := range sortedKeys(ds.STDistribution) {
			fmt.Fprintf(b, "| ST%s | %d |\n", st, ds.STDistribution[st])
		}
		fmt.Fprintf(b, "\n")
	}
	if len(ds.KLocusDistribution) > 0 {
		fmt.Fprintf(b, "## Capsule loci\n\n")
		fmt.Fprintf(b, "| K locus | Samples |\n|---|---|\n")
		for _, kl := range sortedKeys(ds.KLocusDistribution) {
			fmt.Fprintf(b, "| %s | %d |\n", kl, ds.KLocusDistribution[kl])
		}
		fmt.Fprintf(b, "\n")
	}
	if len(ds.CarbapenemaseCombos) > 0 {
		fmt.Fprintf(b, "## Carbapenemase combinations\n\n")
		fmt.Fprintf(b, "| Genes | Samples |\n|---|---|\n")
		for _, combo := range sortedKeys(ds.CarbapenemaseCombos) {
			fmt.Fprintf(b, "| %s | %d |\n", combo, ds.CarbapenemaseCombos[combo])
		}
		fmt.Fprintf(b, "\n")
	}
}

func writeDiagnostics(b *strings.Builder, ds *types.CohortDataset) {
	d := ds.Diagnostics

	fmt.Fprintf(b, "## Diagnostics\n\n")
	fmt.Fprintf(b, "- Rejected hits (below thresholds): %d\n", d.RejectedHits)
	fmt.Fprintf(b, "- Discrepant merges: %d\n", d.DiscrepantMerges)
	fmt.Fprintf(b, "- Unresolved gene identifiers: %d\n", len(d.UnresolvedGenes))
	fmt.Fprintf(b, "- Unparseable files: %d\n", len(d.FailedFiles))

	if len(d.Excluded) > 0 {
		fmt.Fprintf(b, "\nExcluded samples:\n\n")
		for _, ex := range d.Excluded {
			fmt.Fprintf(b, "- `%s`: %s\n", ex.SampleID, ex.Reason)
		}
	}
	if len(d.FailedFiles) > 0 {
		fmt.Fprintf(b, "\nUnparseable files:\n\n")
		for _, f := range d.FailedFiles {
			fmt.Fprintf(b, "- %s\n", f)
		}
	}
	if len(d.UnresolvedGenes) > 0 {
		fmt.Fprintf(b, "\nUnresolved identifiers:\n\n")
		for _, gene := range sortedKeys(d.UnresolvedGenes) {
			fmt.Fprintf(b, "- `%s` (%d occurrence(s))\n", gene, d.UnresolvedGenes[gene])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
