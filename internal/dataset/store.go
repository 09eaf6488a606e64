// Copyright Abx Labs Ltd., 2026. All rights reserved.

package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abxlab/amrscope/pkg/types"
)

// Store persists dataset snapshots in a SQLite database. Each aggregation
// run inserts a fresh snapshot under its run ID; aggregation itself never
// reads prior runs, only reporting does.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the snapshot database at path, creating the
// schema and parent directory as needed.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			total_samples INTEGER NOT NULL,
			included_samples INTEGER NOT NULL,
			gene_carriers TEXT,
			prevalence TEXT,
			top_pairs TEXT,
			carbapenemase_combos TEXT,
			st_distribution TEXT,
			k_locus_distribution TEXT,
			database_coverage TEXT,
			diagnostics TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			run_id TEXT NOT NULL REFERENCES runs(id),
			sample_id TEXT NOT NULL,
			tier TEXT NOT NULL,
			categories TEXT,
			flags TEXT,
			typing TEXT,
			PRIMARY KEY (run_id, sample_id)
		)`,
		`CREATE TABLE IF NOT EXISTS hits (
			run_id TEXT NOT NULL REFERENCES runs(id),
			sample_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			gene TEXT NOT NULL,
			definition TEXT NOT NULL,
			identity REAL NOT NULL,
			coverage REAL NOT NULL,
			tools TEXT,
			merged TEXT,
			discrepancy TEXT,
			PRIMARY KEY (run_id, sample_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_gene ON hits(run_id, gene)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			severity TEXT NOT NULL,
			categories TEXT,
			count INTEGER NOT NULL,
			samples TEXT,
			note TEXT,
			PRIMARY KEY (run_id, position)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save inserts the dataset as a new snapshot. The dataset is verified
// before writing; a store never holds an inconsistent run.
func (s *Store) Save(ctx context.Context, ds *types.CohortDataset) error {
	if err := Verify(ds); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, total_samples, included_samples,
			gene_carriers, prevalence, top_pairs, carbapenemase_combos,
			st_distribution, k_locus_distribution, database_coverage, diagnostics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.RunID, ds.CreatedAt.UTC().Format(time.RFC3339Nano),
		ds.TotalSamples, ds.IncludedSamples,
		asJSON(ds.GeneCarriers), asJSON(ds.Prevalence), asJSON(ds.TopPairs),
		asJSON(ds.CarbapenemaseCombos), asJSON(ds.STDistribution),
		asJSON(ds.KLocusDistribution), asJSON(ds.DatabaseCoverage),
		asJSON(ds.Diagnostics),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", ds.RunID, err)
	}

	profileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO profiles (run_id, sample_id, tier, categories, flags, typing)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing profile insert: %w", err)
	}
	defer profileStmt.Close()

	hitStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hits (run_id, sample_id, position, gene, definition,
			identity, coverage, tools, merged, discrepancy)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing hit insert: %w", err)
	}
	defer hitStmt.Close()

	for _, id := range ds.SampleIDs() {
		p := ds.Profiles[id]
		_, err := profileStmt.ExecContext(ctx,
			ds.RunID, id, string(p.Tier),
			asJSON(p.Categories), asJSON(p.Flags), asJSON(p.Typing),
		)
		if err != nil {
			return fmt.Errorf("inserting profile %s: %w", id, err)
		}
		for i, h := range p.Hits {
			_, err := hitStmt.ExecContext(ctx,
				ds.RunID, id, i, h.Gene.Canonical, asJSON(h.Gene),
				h.Identity, h.Coverage,
				asJSON(h.Tools), asJSON(h.Merged), asJSON(h.Discrepancy),
			)
			if err != nil {
				return fmt.Errorf("inserting hit %s/%s: %w", id, h.Gene.Canonical, err)
			}
		}
	}

	patternStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patterns (run_id, position, name, severity, categories, count, samples, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing pattern insert: %w", err)
	}
	defer patternStmt.Close()

	for i, p := range ds.Patterns {
		_, err := patternStmt.ExecContext(ctx,
			ds.RunID, i, p.Name, string(p.Severity),
			asJSON(p.Categories), p.Count, asJSON(p.Samples), p.Note,
		)
		if err != nil {
			return fmt.Errorf("inserting pattern %s: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

// LoadRun reads one snapshot back into a dataset.
func (s *Store) LoadRun(ctx context.Context, id string) (*types.CohortDataset, error) {
	var ds types.CohortDataset
	var createdAt string
	var carriers, prevalence, pairs, combos sql.NullString
	var sts, kloci, dbs, diags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, total_samples, included_samples,
			gene_carriers, prevalence, top_pairs, carbapenemase_combos,
			st_distribution, k_locus_distribution, database_coverage, diagnostics
		 FROM runs WHERE id = ?`, id,
	).Scan(&ds.RunID, &createdAt, &ds.TotalSamples, &ds.IncludedSamples,
		&carriers, &prevalence, &pairs, &combos, &sts, &kloci, &dbs, &diags)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	if ds.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: bad created_at: %w", id, err)
	}
	fromJSON(carriers, &ds.GeneCarriers)
	fromJSON(prevalence, &ds.Prevalence)
	fromJSON(pairs, &ds.TopPairs)
	fromJSON(combos, &ds.CarbapenemaseCombos)
	fromJSON(sts, &ds.STDistribution)
	fromJSON(kloci, &ds.KLocusDistribution)
	fromJSON(dbs, &ds.DatabaseCoverage)
	fromJSON(diags, &ds.Diagnostics)

	if ds.Profiles, err = s.loadProfiles(ctx, id); err != nil {
		return nil, err
	}
	if ds.Patterns, err = s.loadPatterns(ctx, id); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LatestRun loads the most recently saved snapshot.
func (s *Store) LatestRun(ctx context.Context) (*types.CohortDataset, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store holds no runs")
		}
		return nil, fmt.Errorf("finding latest run: %w", err)
	}
	return s.LoadRun(ctx, id)
}

// RunInfo is one row of the stored-run listing.
type RunInfo struct {
	ID              string
	CreatedAt       time.Time
	TotalSamples    int
	IncludedSamples int
}

// Runs lists stored snapshots, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, total_samples, included_samples
		 FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var info RunInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &createdAt, &info.TotalSamples, &info.IncludedSamples); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) loadProfiles(ctx context.Context, runID string) (map[string]types.SampleProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, tier, categories, flags, typing
		 FROM profiles WHERE run_id = ? ORDER BY sample_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]types.SampleProfile)
	for rows.Next() {
		var p types.SampleProfile
		var tier string
		var categories, flags, typing sql.NullString
		if err := rows.Scan(&p.SampleID, &tier, &categories, &flags, &typing); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		p.Tier = types.RiskTier(tier)
		fromJSON(categories, &p.Categories)
		fromJSON(flags, &p.Flags)
		fromJSON(typing, &p.Typing)
		profiles[p.SampleID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hitRows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, definition, identity, coverage, tools, merged, discrepancy
		 FROM hits WHERE run_id = ? ORDER BY sample_id, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading hits: %w", err)
	}
	defer hitRows.Close()

	for hitRows.Next() {
		var sampleID, definition string
		var h types.CanonicalHit
		var tools, merged, discrepancy sql.NullString
		if err := hitRows.Scan(&sampleID, &definition, &h.Identity, &h.Coverage,
			&tools, &merged, &discrepancy); err != nil {
			return nil, fmt.Errorf("scanning hit row: %w", err)
		}
		if err := json.Unmarshal([]byte(definition), &h.Gene); err != nil {
			return nil, fmt.Errorf("hit definition for %s: %w", sampleID, err)
		}
		h.SampleID = sampleID
		fromJSON(tools, &h.Tools)
		fromJSON(merged, &h.Merged)
		fromJSON(discrepancy, &h.Discrepancy)

		p, ok := profiles[sampleID]
		if !ok {
			return nil, fmt.Errorf("hit row for unknown sample %s", sampleID)
		}
		p.Hits = append(p.Hits, h)
		profiles[sampleID] = p
	}
	return profiles, hitRows.Err()
}

func (s *Store) loadPatterns(ctx context.Context, runID string) ([]types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, severity, categories, count, samples, note
		 FROM patterns WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}
	defer rows.Close()

	var patterns []types.Pattern
	for rows.Next() {
		var p types.Pattern
		var severity string
		var categories, samples sql.NullString
		if err := rows.Scan(&p.Name, &severity, &categories, &p.Count, &samples, &p.Note); err != nil {
			return nil, fmt.Errorf("scanning pattern row: %w", err)
		}
		p.Severity = types.RiskTier(severity)
		fromJSON(categories, &p.Categories)
		fromJSON(samples, &p.Samples)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// asJSON renders a value for a TEXT column. Marshaling the types stored
// here cannot fail.
func asJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// fromJSON fills dst from a nullable TEXT column, ignoring absent values.
func fromJSON[T any](col sql.NullString, dst *T) {
	if !col.Valid || col.String == "" {
		return
	}
	json.Unmarshal([]byte(col.String), dst)
}
