// Copyright Abx Labs Ltd., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abxlab/amrscope/internal/dataset"
	"github.com/abxlab/amrscope/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render tables from a stored cohort dataset",
	Long: `Report reads a run snapshot from the SQLite store written by
aggregate --store and renders gene, sample, and pattern tables with
optional filters. The latest run is used unless --run names one.`,
}

// openDataset loads the run the report subcommands render.
func openDataset(cmd *cobra.Command) (*types.CohortDataset, error) {
	path := settingString(cmd, "store")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store %s is not readable (run aggregate with --store first): %w", path, err)
	}

	store, err := dataset.OpenStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if runID := settingString(cmd, "run"); runID != "" {
		return store.LoadRun(context.Background(), runID)
	}
	return store.LatestRun(context.Background())
}

// queryOptions builds the shared dataset filters from flags.
func queryOptions(cmd *cobra.Command) dataset.QueryOptions {
	gene, _ := cmd.Flags().GetString("gene")
	category, _ := cmd.Flags().GetString("category")
	minTier, _ := cmd.Flags().GetString("min-tier")
	flag, _ := cmd.Flags().GetString("flag")
	limit, _ := cmd.Flags().GetInt("limit")

	return dataset.QueryOptions{
		Gene:     gene,
		Category: types.Category(category),
		MinTier:  types.RiskTier(minTier),
		Flag:     flag,
		Limit:    limit,
	}
}

// --- genes subcommand ---

var reportGenesCmd = &cobra.Command{
	Use:   "genes",
	Short: "Render the gene prevalence table",
	Long: `Genes prints the cohort's gene-centric table: carrier counts and
prevalence per canonical gene, filterable by gene name, category, and
minimum risk tier.`,
	RunE: runReportGenes,
}

func runReportGenes(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(cmd)
	if err != nil {
		return err
	}

	rows := dataset.FilterPrevalence(ds, queryOptions(cmd))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No genes matched.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-18s  %-26s  %-13s  %-6s  %-7s  %s\n",
		"Gene", "Category", "Tier", "Count", "Percent", "Samples")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range rows {
		fmt.Fprintf(os.Stdout, "%-18s  %-26s  %-13s  %-6d  %-7s  %s\n",
			truncate(r.Gene, 18), r.Category, r.Tier, r.Count,
			fmt.Sprintf("%.1f", r.Percent), truncate(strings.Join(r.Samples, ","), 36))
	}

	fmt.Fprintf(os.Stdout, "\n%d gene(s)\n", len(rows))
	return nil
}

// --- samples subcommand ---

var reportSamplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Render the per-sample risk table",
	Long: `Samples prints one row per included sample: risk tier, canonical hit
count, resistance categories, flags, and sequence type. Filterable by
carried gene, category, flag, and minimum risk tier.`,
	RunE: runReportSamples,
}

func runReportSamples(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(cmd)
	if err != nil {
		return err
	}

	profiles := dataset.FilterProfiles(ds, queryOptions(cmd))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(profiles)
	}
	if len(profiles) == 0 {
		fmt.Println("No samples matched.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-22s  %-13s  %-5s  %-34s  %-28s  %s\n",
		"Sample", "Tier", "Hits", "Categories", "Flags", "ST")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, p := range profiles {
		st := ""
		if p.Typing != nil {
			st = p.Typing.SequenceType
		}
		fmt.Fprintf(os.Stdout, "%-22s  %-13s  %-5d  %-34s  %-28s  %s\n",
			truncate(p.SampleID, 22), p.Tier, len(p.Hits),
			truncate(joinCategories(p.Categories), 34),
			truncate(joinFlags(p.Flags), 28), st)
	}

	fmt.Fprintf(os.Stdout, "\n%d sample(s)\n", len(profiles))
	return nil
}

// --- patterns subcommand ---

var reportPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Render the discovered co-occurrence patterns",
	Long: `Patterns prints the cohort patterns the declared rules matched,
ordered by severity, with the satisfying samples.`,
	RunE: runReportPatterns,
}

func runReportPatterns(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(cmd)
	if err != nil {
		return err
	}

	patterns := dataset.FilterPatterns(ds, queryOptions(cmd))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(patterns)
	}
	if len(patterns) == 0 {
		fmt.Println("No patterns matched.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-32s  %-13s  %-6s  %-30s  %s\n",
		"Pattern", "Severity", "Count", "Samples", "Note")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, p := range patterns {
		fmt.Fprintf(os.Stdout, "%-32s  %-13s  %-6d  %-30s  %s\n",
			truncate(p.Name, 32), p.Severity, p.Count,
			truncate(strings.Join(p.Samples, ","), 30), truncate(p.Note, 40))
	}

	fmt.Fprintf(os.Stdout, "\n%d pattern(s)\n", len(patterns))
	return nil
}

// --- runs subcommand ---

var reportRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs held in the store",
	RunE:  runReportRuns,
}

func runReportRuns(cmd *cobra.Command, args []string) error {
	path := settingString(cmd, "store")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("store %s is not readable (run aggregate with --store first): %w", path, err)
	}

	store, err := dataset.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return encodeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("Store holds no runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-38s  %-25s  %-8s  %s\n", "Run", "Created", "Samples", "Included")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 85))

	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-38s  %-25s  %-8d  %d\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.TotalSamples, r.IncludedSamples)
	}

	fmt.Fprintf(os.Stdout, "\n%d run(s)\n", len(runs))
	return nil
}

// --- shared rendering helpers ---

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func joinCategories(cats []types.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func joinFlags(flags map[string]bool) string {
	var set []string
	for f, on := range flags {
		if on {
			set = append(set, f)
		}
	}
	sort.Strings(set)
	return strings.Join(set, ",")
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	reportCmd.PersistentFlags().String("store", "amrscope.db", "SQLite snapshot file written by aggregate --store")
	reportCmd.PersistentFlags().String("run", "", "run ID to render (default: the latest run)")
	reportCmd.PersistentFlags().String("gene", "", "filter by gene name (formatting variants match)")
	reportCmd.PersistentFlags().String("category", "", "filter by resistance category")
	reportCmd.PersistentFlags().String("min-tier", "", "minimum risk tier: CRITICAL, HIGH, MEDIUM, LOW, ENVIRONMENTAL")
	reportCmd.PersistentFlags().String("flag", "", "filter samples by profile flag")
	reportCmd.PersistentFlags().Int("limit", 0, "maximum rows (0 = all)")
	reportCmd.PersistentFlags().Bool("json", false, "output rows as JSON")

	reportCmd.AddCommand(reportGenesCmd)
	reportCmd.AddCommand(reportSamplesCmd)
	reportCmd.AddCommand(reportPatternsCmd)
	reportCmd.AddCommand(reportRunsCmd)

	rootCmd.AddCommand(reportCmd)
}
