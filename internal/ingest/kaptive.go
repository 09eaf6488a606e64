// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"strings"

	"github.com/abxlab/amrscope/pkg/types"
)

// KaptiveParser reads Kaptive tabular output (<sample>_kaptive.tsv).
// Capsule (KL) and outer-core (OCL) locus rows may share one file; rows are
// routed by locus prefix. Kaptive is a typing tool: metadata only, no gene
// hits.
type KaptiveParser struct{}

func (p *KaptiveParser) Tool() string { return "kaptive" }

func (p *KaptiveParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, "_kaptive.tsv")
}

func (p *KaptiveParser) Parse(path, sampleID string) ([]types.RawHit, *types.Typing, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, nil, err
	}
	idx := headerIndex(header)

	if _, ok := idx["best match locus"]; !ok {
		return nil, nil, fmt.Errorf("%w: %s lacks column %q", ErrMalformedInput, path, "best match locus")
	}

	typing := &types.Typing{}
	for _, row := range rows {
		locus := column(row, idx, "best match locus")
		if locus == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(locus), "OCL") {
			if typing.OCLocus == "" {
				typing.OCLocus = locus
			}
			continue
		}
		if typing.KLocus == "" {
			typing.KLocus = locus
			typing.KConfidence = column(row, idx, "match confidence")
		}
	}
	if typing.KLocus == "" && typing.OCLocus == "" {
		return nil, nil, fmt.Errorf("%w: %s has no locus calls", ErrMalformedInput, path)
	}
	return nil, typing, nil
}
