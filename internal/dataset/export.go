// Copyright Abx Labs Ltd., 2026. All rights reserved.

package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/abxlab/amrscope/pkg/types"
)

// ExportJSON writes the complete dataset as indented JSON.
func ExportJSON(w io.Writer, ds *types.CohortDataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}
	return nil
}

// summaryTopGenes caps the gene table carried in the YAML summary.
const summaryTopGenes = 25

// Summary is the condensed dataset view used by the YAML export and the
// run report.
type Summary struct {
	RunID           string    `yaml:"run_id"`
	CreatedAt       time.Time `yaml:"created_at"`
	TotalSamples    int       `yaml:"total_samples"`
	IncludedSamples int       `yaml:"included_samples"`

	TierCounts map[types.RiskTier]int `yaml:"tier_counts"`
	FlagCounts map[string]int         `yaml:"flag_counts,omitempty"`

	Patterns []types.Pattern        `yaml:"patterns,omitempty"`
	TopGenes []types.GenePrevalence `yaml:"top_genes,omitempty"`

	STDistribution     map[string]int `yaml:"st_distribution,omitempty"`
	KLocusDistribution map[string]int `yaml:"k_locus_distribution,omitempty"`

	Diagnostics types.Diagnostics `yaml:"diagnostics"`
}

// Summarize condenses a dataset for human-facing output.
func Summarize(ds *types.CohortDataset) Summary {
	s := Summary{
		RunID:              ds.RunID,
		CreatedAt:          ds.CreatedAt,
		TotalSamples:       ds.TotalSamples,
		IncludedSamples:    ds.IncludedSamples,
		TierCounts:         make(map[types.RiskTier]int),
		FlagCounts:         make(map[string]int),
		Patterns:           ds.Patterns,
		TopGenes:           ds.Prevalence,
		STDistribution:     ds.STDistribution,
		KLocusDistribution: ds.KLocusDistribution,
		Diagnostics:        ds.Diagnostics,
	}
	for _, p := range ds.Profiles {
		s.TierCounts[p.Tier]++
		for flag, set := range p.Flags {
			if set {
				s.FlagCounts[flag]++
			}
		}
	}
	if len(s.TopGenes) > summaryTopGenes {
		s.TopGenes = s.TopGenes[:summaryTopGenes]
	}
	return s
}

// ExportYAML writes the dataset summary as YAML.
func ExportYAML(w io.Writer, ds *types.CohortDataset) error {
	data, err := yaml.Marshal(Summarize(ds))
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing YAML export: %w", err)
	}
	return nil
}

// WriteCSVTables writes the gene-centric tables into dir: one genes_<category>.csv
// per category present in the cohort, plus patterns.csv and samples.csv.
func WriteCSVTables(dir string, ds *types.CohortDataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	byCategory := make(map[types.Category][]types.GenePrevalence)
	for _, row := range ds.Prevalence {
		byCategory[row.Category] = append(byCategory[row.Category], row)
	}
	for cat, rows := range byCategory {
		name := fmt.Sprintf("genes_%s.csv", cat)
		records := [][]string{{"gene", "category", "tier", "samples", "percent", "carriers"}}
		for _, r := range rows {
			records = append(records, []string{
				r.Gene, string(r.Category), string(r.Tier),
				strconv.Itoa(r.Count),
				strconv.FormatFloat(r.Percent, 'f', 1, 64),
				strings.Join(r.Samples, ";"),
			})
		}
		if err := writeCSV(filepath.Join(dir, name), records); err != nil {
			return err
		}
	}

	records := [][]string{{"pattern", "severity", "samples", "categories", "carriers", "note"}}
	for _, p := range ds.Patterns {
		records = append(records, []string{
			p.Name, string(p.Severity), strconv.Itoa(p.Count),
			joinCategories(p.Categories), strings.Join(p.Samples, ";"), p.Note,
		})
	}
	if err := writeCSV(filepath.Join(dir, "patterns.csv"), records); err != nil {
		return err
	}

	records = [][]string{{"sample", "tier", "genes", "categories", "flags", "sequence_type", "k_locus", "gene_names"}}
	for _, id := range ds.SampleIDs() {
		p := ds.Profiles[id]
		var st, kl string
		if p.Typing != nil {
			st, kl = p.Typing.SequenceType, p.Typing.KLocus
		}
		records = append(records, []string{
			id, string(p.Tier), strconv.Itoa(len(p.Hits)),
			joinCategories(p.Categories), joinFlags(p.Flags), st, kl,
			strings.Join(p.GeneNames(), ";"),
		})
	}
	return writeCSV(filepath.Join(dir, "samples.csv"), records)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func joinCategories(cats []types.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ";")
}

// joinFlags renders the set flags, sorted.
func joinFlags(flags map[string]bool) string {
	var set []string
	for f, ok := range flags {
		if ok {
			set = append(set, f)
		}
	}
	sort.Strings(set)
	return strings.Join(set, ";")
}
