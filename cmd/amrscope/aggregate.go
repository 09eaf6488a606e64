// Copyright Abx Labs Ltd., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abxlab/amrscope/internal/cohort"
	"github.com/abxlab/amrscope/internal/dataset"
	"github.com/abxlab/amrscope/internal/ingest"
	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/internal/pattern"
	"github.com/abxlab/amrscope/internal/report"
	"github.com/abxlab/amrscope/pkg/types"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run the full aggregation pipeline over a results directory",
	Long: `Aggregate scans a results directory for per-sample tool output files,
parses them, normalizes raw hits against the gene registry, merges duplicate
detections across tools, risk-classifies every sample, and mines the cohort
for declared gene-category patterns.

The finished dataset is written to the output directory as dataset.json, a
summary.yaml, per-category CSV tables, and a markdown report. With --store
the run is also saved to a SQLite snapshot for later report queries.`,
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)
	out := cmd.OutOrStdout()

	switch cfg.Normalize.Unresolved {
	case types.UnresolvedUncategorized, types.UnresolvedDrop:
	default:
		return fmt.Errorf("unknown unresolved policy %q: use uncategorized or drop", cfg.Normalize.Unresolved)
	}

	k, err := kb.Load(cfg.RegistryPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d gene definition(s) from %s\n", k.Len(), cfg.RegistryPath)

	rulesPath := cfg.Pattern.RulesPath
	if rulesPath != "" {
		if _, serr := os.Stat(rulesPath); os.IsNotExist(serr) {
			fmt.Fprintf(out, "Rules file %s not found, using built-in rules\n", rulesPath)
			rulesPath = ""
		}
	}
	rules, err := pattern.LoadRules(rulesPath)
	if err != nil {
		return err
	}

	parsers, err := selectParsers(cfg.Ingest.Tools)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Scanning %s\n", cfg.Ingest.ResultsDir)
	inputs, summary, err := ingest.Scan(cfg.Ingest.ResultsDir, parsers, out)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no tool output files found under %s", cfg.Ingest.ResultsDir)
	}
	fmt.Fprintf(out, "Parsed %d file(s) covering %d sample(s)\n", summary.Files, summary.Samples)
	if summary.Failed > 0 {
		fmt.Fprintf(out, "Skipped %d unparseable file(s)\n", summary.Failed)
	}

	res, err := cohort.NewPipeline(k, cfg).Run(context.Background(), inputs, out)
	if err != nil {
		return err
	}

	analysis := pattern.New(k, rules, cfg.Pattern).Discover(res.Profiles)

	ds, err := dataset.Build(res, analysis, summary)
	if err != nil {
		return err
	}

	if err := writeArtifacts(cfg.Output.Dir, ds, out); err != nil {
		return err
	}

	if cfg.Output.StorePath != "" {
		if err := saveRun(cfg.Output.StorePath, ds, out); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nRun %s: %d sample(s), %d included, %d excluded\n",
		ds.RunID, ds.TotalSamples, ds.IncludedSamples, len(ds.Diagnostics.Excluded))
	fmt.Fprintf(out, "Rejected below thresholds: %d, tool discrepancies: %d, unresolved identifiers: %d\n",
		ds.Diagnostics.RejectedHits, ds.Diagnostics.DiscrepantMerges, len(ds.Diagnostics.UnresolvedGenes))
	return nil
}

// writeArtifacts renders every dataset artifact into dir.
func writeArtifacts(dir string, ds *types.CohortDataset, w io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	exports := []struct {
		name   string
		render func(io.Writer, *types.CohortDataset) error
	}{
		{"dataset.json", dataset.ExportJSON},
		{"summary.yaml", dataset.ExportYAML},
		{"report.md", report.WriteMarkdown},
	}
	for _, e := range exports {
		path := filepath.Join(dir, e.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := e.render(f, ds); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", path)
	}

	tablesDir := filepath.Join(dir, "tables")
	if err := dataset.WriteCSVTables(tablesDir, ds); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote CSV tables under %s\n", tablesDir)
	return nil
}

// saveRun snapshots the dataset into the SQLite store.
func saveRun(path string, ds *types.CohortDataset, w io.Writer) error {
	store, err := dataset.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(context.Background(), ds); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved run %s to %s\n", ds.RunID, path)
	return nil
}

// --- shared helpers ---

// pipelineConfig assembles the run configuration from the documented
// defaults and the setting resolution order.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	cfg.RegistryPath = settingString(cmd, "registry")
	cfg.Workers = settingInt(cmd, "workers")
	cfg.Ingest.ResultsDir = settingString(cmd, "results")
	cfg.Ingest.Tools = settingStrings(cmd, "tools")
	cfg.Normalize.MinIdentity = settingFloat(cmd, "min-identity")
	cfg.Normalize.MinCoverage = settingFloat(cmd, "min-coverage")
	cfg.Normalize.Unresolved = types.UnresolvedPolicy(settingString(cmd, "unresolved"))
	cfg.Merge.ToolPriority = settingStrings(cmd, "tool-priority")
	cfg.Merge.DiscrepancyThreshold = settingFloat(cmd, "discrepancy-threshold")
	cfg.Classify.MultidrugMinCategories = settingInt(cmd, "multidrug-min")
	cfg.Pattern.RulesPath = settingString(cmd, "rules")
	cfg.Pattern.MinSupport = settingInt(cmd, "min-support")
	cfg.Pattern.TopPairs = settingInt(cmd, "top-pairs")
	cfg.Output.Dir = settingString(cmd, "out")
	cfg.Output.StorePath = settingString(cmd, "store")

	return cfg
}

// selectParsers narrows the tool adapters to the named tools. Empty keeps
// every adapter.
func selectParsers(tools []string) ([]ingest.Parser, error) {
	parsers := ingest.DefaultParsers()
	if len(tools) == 0 {
		return parsers, nil
	}

	byName := make(map[string]ingest.Parser, len(parsers))
	names := make([]string, 0, len(parsers))
	for _, p := range parsers {
		byName[p.Tool()] = p
		names = append(names, p.Tool())
	}

	selected := make([]ingest.Parser, 0, len(tools))
	for _, name := range tools {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q: supported tools are %v", name, names)
		}
		selected = append(selected, p)
	}
	return selected, nil
}

func init() {
	def := types.DefaultPipelineConfig()

	aggregateCmd.Flags().String("results", def.Ingest.ResultsDir, "directory of per-sample tool output files")
	aggregateCmd.Flags().String("registry", def.RegistryPath, "gene registry YAML file")
	aggregateCmd.Flags().String("rules", def.Pattern.RulesPath, "pattern rules YAML file (missing file = built-in rules)")
	aggregateCmd.Flags().StringSlice("tools", nil, "restrict ingestion to the named tools (default all)")
	aggregateCmd.Flags().Int("workers", def.Workers, "per-sample worker count (0 = one per CPU)")
	aggregateCmd.Flags().Float64("min-identity", def.Normalize.MinIdentity, "minimum percent identity for a raw hit")
	aggregateCmd.Flags().Float64("min-coverage", def.Normalize.MinCoverage, "minimum percent coverage for a raw hit")
	aggregateCmd.Flags().String("unresolved", string(def.Normalize.Unresolved), "policy for identifiers missing from the registry: uncategorized or drop")
	aggregateCmd.Flags().StringSlice("tool-priority", def.Merge.ToolPriority, "tool precedence for merge tie-breaks")
	aggregateCmd.Flags().Float64("discrepancy-threshold", def.Merge.DiscrepancyThreshold, "identity spread in points that records a tool disagreement")
	aggregateCmd.Flags().Int("multidrug-min", def.Classify.MultidrugMinCategories, "distinct antibiotic categories that set the multidrug flag")
	aggregateCmd.Flags().Int("min-support", def.Pattern.MinSupport, "minimum satisfying samples for a pattern rule to fire")
	aggregateCmd.Flags().Int("top-pairs", def.Pattern.TopPairs, "how many co-occurring gene pairs to keep")
	aggregateCmd.Flags().String("out", def.Output.Dir, "output directory for dataset artifacts")
	aggregateCmd.Flags().String("store", def.Output.StorePath, "SQLite snapshot file (empty = no store)")

	rootCmd.AddCommand(aggregateCmd)
}
