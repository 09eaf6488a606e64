// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abxlab/amrscope/pkg/types"
)

// AbricateParser reads ABRicate tabular output
// (<sample>_abricate_<database>.tsv, header line starting with #FILE).
// One ABRicate run screens one reference database; the database name is
// taken from the DATABASE column and falls back to the filename.
type AbricateParser struct{}

func (p *AbricateParser) Tool() string { return "abricate" }

func (p *AbricateParser) CanParse(filename string) bool {
	return strings.Contains(filename, "_abricate") && strings.HasSuffix(filename, ".tsv")
}

func (p *AbricateParser) Parse(path, sampleID string) ([]types.RawHit, *types.Typing, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(header[0]), "#file") {
		return nil, nil, fmt.Errorf("%w: %s is not an abricate table (header starts %q)", ErrMalformedInput, path, header[0])
	}
	idx := headerIndex(header)

	for _, required := range []string{"gene", "%identity", "%coverage"} {
		if _, ok := idx[required]; !ok {
			return nil, nil, fmt.Errorf("%w: %s lacks column %q", ErrMalformedInput, path, required)
		}
	}

	fallbackDB := databaseFromFilename(path)

	var hits []types.RawHit
	for _, row := range rows {
		gene := column(row, idx, "gene")
		if gene == "" {
			continue
		}
		identity, err := parsePercent(column(row, idx, "%identity"))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: gene %s: %w", path, gene, err)
		}
		coverage, err := parsePercent(column(row, idx, "%coverage"))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: gene %s: %w", path, gene, err)
		}

		db := column(row, idx, "database")
		if db == "" {
			db = fallbackDB
		}

		hits = append(hits, types.RawHit{
			SampleID:  sampleID,
			Tool:      p.Tool(),
			Gene:      gene,
			Identity:  identity,
			Coverage:  coverage,
			Contig:    column(row, idx, "sequence"),
			Start:     parseCoordinate(column(row, idx, "start")),
			End:       parseCoordinate(column(row, idx, "end")),
			Database:  db,
			Accession: column(row, idx, "accession"),
			Product:   column(row, idx, "product"),
		})
	}
	return hits, nil, nil
}

// databaseFromFilename extracts the screened database from the
// _abricate_<database>.tsv naming convention.
func databaseFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".tsv")
	if i := strings.Index(base, "_abricate_"); i >= 0 {
		return base[i+len("_abricate_"):]
	}
	return ""
}
