// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package main is the entry point for the amrscope CLI. Each pipeline
// surface is a subcommand: aggregate runs a full cohort aggregation,
// kb inspects the gene registry, report renders tables from a stored
// dataset.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abxlab/amrscope/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the amrscope CLI.
var rootCmd = &cobra.Command{
	Use:   "amrscope",
	Short: "Aggregate and risk-classify AMR tool outputs for a genome cohort",
	Long: `amrscope joins the per-sample outputs of resistance detection and typing
tools (AMRFinderPlus, ABRicate, mlst, Kaptive) into one cohort dataset:
raw hits normalized against a curated gene registry, merged across tools,
risk-classified per sample, and mined for cohort-level patterns.

aggregate runs the full pipeline over a results directory, kb validates
and lists the gene registry, and report renders gene, sample, and pattern
tables from a stored run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(settingString(cmd, "log-level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./amrscope.yaml or ~/.config/amrscope/amrscope.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "diagnostic log level: debug, info, warn, or error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("amrscope")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "amrscope"))
		}
	}

	viper.SetEnvPrefix("AMRSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// The setting helpers resolve one named value with flag > env > config file
// > flag default precedence. Config file and environment keys mirror the
// long flag names, dashes mapped to underscores for the environment.

func settingString(cmd *cobra.Command, name string) string {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetString(name)
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func settingInt(cmd *cobra.Command, name string) int {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetInt(name)
	}
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func settingFloat(cmd *cobra.Command, name string) float64 {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetFloat64(name)
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return v
}

func settingStrings(cmd *cobra.Command, name string) []string {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetStringSlice(name)
	}
	v, _ := cmd.Flags().GetStringSlice(name)
	return v
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
