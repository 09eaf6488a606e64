// Copyright Abx Labs Ltd., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect the curated gene registry",
	Long: `Kb works with the curated gene registry the normalizer resolves raw
hits against. Use subcommands to validate a registry file or list its
definitions.`,
}

// --- validate subcommand ---

var kbValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a gene registry file for hygiene problems",
	Long: `Validate loads the registry YAML and reports every problem it finds:
aliases colliding across definitions, unknown risk tiers, and empty names
or categories. The exit status is non-zero when any problem is found.`,
	RunE: runKBValidate,
}

func runKBValidate(cmd *cobra.Command, args []string) error {
	path := settingString(cmd, "registry")
	out := cmd.OutOrStdout()

	genes, err := kb.LoadFile(path)
	if err != nil {
		return err
	}

	problems := kb.Lint(genes)
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("%d problem(s) in %s", len(problems), path)
	}

	if _, err := kb.New(genes); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d gene definition(s), no problems\n", path, len(genes))
	return nil
}

// --- list subcommand ---

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the gene definitions in the registry",
	Long: `List prints every definition in the registry, optionally narrowed to
one category, with aliases and curation notes.`,
	RunE: runKBList,
}

func runKBList(cmd *cobra.Command, args []string) error {
	path := settingString(cmd, "registry")
	category, _ := cmd.Flags().GetString("category")

	k, err := kb.Load(path)
	if err != nil {
		return err
	}

	genes := k.Genes()
	if category != "" {
		filtered := genes[:0]
		for _, g := range genes {
			if g.Category == types.Category(category) {
				filtered = append(filtered, g)
			}
		}
		genes = filtered
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatGeneList(genes, jsonOutput)
}

func formatGeneList(genes []types.GeneDefinition, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(genes)
	}

	if len(genes) == 0 {
		fmt.Println("No gene definitions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-18s  %-26s  %-13s  %-28s  %s\n",
		"Gene", "Category", "Tier", "Aliases", "Note")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, g := range genes {
		fmt.Fprintf(os.Stdout, "%-18s  %-26s  %-13s  %-28s  %s\n",
			truncate(g.Canonical, 18), g.Category, g.Tier,
			truncate(strings.Join(g.Aliases, ","), 28), truncate(g.Note, 40))
	}

	fmt.Fprintf(os.Stdout, "\n%d gene definition(s)\n", len(genes))
	return nil
}

func init() {
	// Shared flag on the parent command, inherited by subcommands.
	kbCmd.PersistentFlags().String("registry", types.DefaultPipelineConfig().RegistryPath, "gene registry YAML file")

	kbListCmd.Flags().String("category", "", "only list definitions in this category")
	kbListCmd.Flags().Bool("json", false, "output definitions as JSON")

	kbCmd.AddCommand(kbValidateCmd)
	kbCmd.AddCommand(kbListCmd)

	rootCmd.AddCommand(kbCmd)
}
