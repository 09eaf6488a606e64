package types

// IngestConfig holds settings for input discovery and parsing.
type IngestConfig struct {
	// ResultsDir is the directory scanned for per-sample tool output files.
	ResultsDir string `json:"results_dir" yaml:"results_dir"`

	// Tools restricts ingestion to the named source tools. Empty means all
	// adapters whose filename patterns match.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// UnresolvedPolicy selects what the normalizer does with a gene identifier
// the registry cannot resolve.
type UnresolvedPolicy string

const (
	// UnresolvedUncategorized keeps the hit with a synthesized
	// uncategorized, tier LOW definition.
	UnresolvedUncategorized UnresolvedPolicy = "uncategorized"

	// UnresolvedDrop discards the hit after counting it.
	UnresolvedDrop UnresolvedPolicy = "drop"
)

// NormalizeConfig holds quality thresholds and the unresolved-gene policy.
type NormalizeConfig struct {
	// MinIdentity is the minimum percent identity a raw hit must reach
	// (default 80).
	MinIdentity float64 `json:"min_identity" yaml:"min_identity"`

	// MinCoverage is the minimum percent coverage a raw hit must reach
	// (default 70).
	MinCoverage float64 `json:"min_coverage" yaml:"min_coverage"`

	// Unresolved selects the policy for identifiers the registry cannot
	// resolve: uncategorized or drop.
	Unresolved UnresolvedPolicy `json:"unresolved" yaml:"unresolved"`
}

// MergeConfig holds the deterministic merge policy knobs.
type MergeConfig struct {
	// ToolPriority breaks ties between tools reporting identical identity
	// and coverage: earlier entries win. Tools not listed rank after all
	// listed ones.
	ToolPriority []string `json:"tool_priority" yaml:"tool_priority"`

	// DiscrepancyThreshold is the identity spread, in percentage points,
	// above which a tool disagreement is recorded on the merged hit
	// (default 5).
	DiscrepancyThreshold float64 `json:"discrepancy_threshold" yaml:"discrepancy_threshold"`
}

// ClassifyConfig holds risk classification knobs.
type ClassifyConfig struct {
	// MultidrugMinCategories is the number of distinct resistance
	// categories that sets the multidrug flag (default 3).
	MultidrugMinCategories int `json:"multidrug_min_categories" yaml:"multidrug_min_categories"`
}

// PatternConfig holds pattern discovery settings.
type PatternConfig struct {
	// RulesPath is the YAML file of declared category combinations.
	RulesPath string `json:"rules_path" yaml:"rules_path"`

	// MinSupport is the default minimum satisfying-sample count for a rule
	// to emit a pattern (default 1). Individual rules may override it.
	MinSupport int `json:"min_support" yaml:"min_support"`

	// TopPairs is how many same-sample gene pairs to keep (default 10).
	TopPairs int `json:"top_pairs" yaml:"top_pairs"`
}

// OutputConfig holds artifact destinations for a run.
type OutputConfig struct {
	// Dir is the directory dataset artifacts are written into.
	Dir string `json:"dir" yaml:"dir"`

	// StorePath is the sqlite snapshot file. Empty disables the store.
	StorePath string `json:"store_path,omitempty" yaml:"store_path,omitempty"`
}

// PipelineConfig groups all stage configurations for one aggregation run.
type PipelineConfig struct {
	// RegistryPath is the YAML gene registry the knowledge base loads.
	RegistryPath string `json:"registry_path" yaml:"registry_path"`

	// Workers bounds the per-sample worker pool. Zero means one worker
	// per CPU.
	Workers int `json:"workers" yaml:"workers"`

	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Merge     MergeConfig     `json:"merge" yaml:"merge"`
	Classify  ClassifyConfig  `json:"classify" yaml:"classify"`
	Pattern   PatternConfig   `json:"pattern" yaml:"pattern"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}

// DefaultPipelineConfig returns the documented defaults. Callers overlay
// config file, environment, and flag values on top.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RegistryPath: "configs/genes.yaml",
		Ingest: IngestConfig{
			ResultsDir: "results",
		},
		Normalize: NormalizeConfig{
			MinIdentity: 80,
			MinCoverage: 70,
			Unresolved:  UnresolvedUncategorized,
		},
		Merge: MergeConfig{
			ToolPriority:         []string{"amrfinder", "abricate", "mlst", "kaptive"},
			DiscrepancyThreshold: 5,
		},
		Classify: ClassifyConfig{
			MultidrugMinCategories: 3,
		},
		Pattern: PatternConfig{
			RulesPath:  "configs/patterns.yaml",
			MinSupport: 1,
			TopPairs:   10,
		},
		Output: OutputConfig{
			Dir: "output",
		},
	}
}
