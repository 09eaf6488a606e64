// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"strings"

	"github.com/abxlab/amrscope/pkg/types"
)

// AMRFinderParser reads AMRFinderPlus tabular output
// (<sample>_amrfinder.tsv). Columns are located by header name, so column
// reordering between AMRFinderPlus releases does not break parsing.
type AMRFinderParser struct{}

func (p *AMRFinderParser) Tool() string { return "amrfinder" }

func (p *AMRFinderParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, "_amrfinder.tsv")
}

func (p *AMRFinderParser) Parse(path, sampleID string) ([]types.RawHit, *types.Typing, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, nil, err
	}
	idx := headerIndex(header)

	for _, required := range []string{"gene symbol", "% identity to reference sequence", "% coverage of reference sequence"} {
		if _, ok := idx[required]; !ok {
			return nil, nil, fmt.Errorf("%w: %s lacks column %q", ErrMalformedInput, path, required)
		}
	}

	var hits []types.RawHit
	for _, row := range rows {
		gene := column(row, idx, "gene symbol")
		if gene == "" {
			continue
		}
		identity, err := parsePercent(column(row, idx, "% identity to reference sequence"))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: gene %s: %w", path, gene, err)
		}
		coverage, err := parsePercent(column(row, idx, "% coverage of reference sequence"))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: gene %s: %w", path, gene, err)
		}

		hits = append(hits, types.RawHit{
			SampleID:  sampleID,
			Tool:      p.Tool(),
			Gene:      gene,
			Identity:  identity,
			Coverage:  coverage,
			Contig:    column(row, idx, "contig id"),
			Start:     parseCoordinate(column(row, idx, "start")),
			End:       parseCoordinate(column(row, idx, "stop")),
			Accession: column(row, idx, "accession of closest sequence"),
			Product:   column(row, idx, "sequence name"),
		})
	}
	return hits, nil, nil
}
