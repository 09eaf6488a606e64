// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package ingest discovers per-sample tool output files and parses them
// into raw hits through one small adapter per source-tool format. The
// aggregation core stays tool-agnostic: everything downstream sees only
// RawHit records tagged with the source tool name.
package ingest

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abxlab/amrscope/pkg/types"
)

// Parser parses one source tool's output file format.
type Parser interface {
	// Tool returns the source tool name stamped on parsed hits.
	Tool() string

	// CanParse reports whether the filename matches this tool's output
	// naming convention.
	CanParse(filename string) bool

	// Parse reads one output file for the given sample. Typing is non-nil
	// only for typing tools; detection tools return hits only.
	Parse(path, sampleID string) ([]types.RawHit, *types.Typing, error)
}

// DefaultParsers returns the adapters for all supported source tools.
func DefaultParsers() []Parser {
	return []Parser{
		&AMRFinderParser{},
		&AbricateParser{},
		&MLSTParser{},
		&KaptiveParser{},
	}
}

// SampleInput collects everything ingested for one sample.
type SampleInput struct {
	// SampleID is the normalized sample identifier.
	SampleID string

	// Hits holds the raw detection records from all parsed files.
	Hits []types.RawHit

	// Typing holds merged typing metadata, when a typing tool reported.
	Typing *types.Typing

	// Problems records per-file parse failures. A sample with problems and
	// no parsed content is malformed and gets excluded from the cohort.
	Problems []string
}

// Empty reports whether nothing usable was parsed for the sample.
func (s *SampleInput) Empty() bool {
	return len(s.Hits) == 0 && s.Typing == nil
}

// Summary counts what a Scan saw.
type Summary struct {
	// Files counts files matched to a parser.
	Files int

	// Failed counts files that failed to parse.
	Failed int

	// FailedFiles lists the failed files with their errors, in walk order.
	FailedFiles []string

	// Samples counts distinct samples discovered.
	Samples int

	// Records counts parsed raw records per source tool.
	Records map[string]int
}

// Scan walks a results directory, matches files to parsers by name, and
// groups parsed output by sample. Parse failures are absorbed per file and
// reported in the affected sample's Problems; only an unreadable root is an
// error. Progress goes to w.
func Scan(dir string, parsers []Parser, w io.Writer) ([]SampleInput, Summary, error) {
	summary := Summary{Records: make(map[string]int)}
	bySample := make(map[string]*SampleInput)

	sample := func(id string) *SampleInput {
		if s, ok := bySample[id]; ok {
			return s
		}
		s := &SampleInput{SampleID: id}
		bySample[id] = s
		return s
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		for _, p := range parsers {
			if !p.CanParse(name) {
				continue
			}
			summary.Files++
			id := SampleIDFromFilename(name)
			s := sample(id)

			hits, typing, perr := p.Parse(path, id)
			if perr != nil {
				summary.Failed++
				summary.FailedFiles = append(summary.FailedFiles, fmt.Sprintf("%s: %v", name, perr))
				s.Problems = append(s.Problems, fmt.Sprintf("%s: %v", name, perr))
				fmt.Fprintf(w, "  failed %s: %v\n", name, perr)
				break
			}
			s.Hits = append(s.Hits, hits...)
			if typing != nil {
				s.Typing = mergeTyping(s.Typing, typing)
			}
			summary.Records[p.Tool()] += len(hits)
			fmt.Fprintf(w, "  parsed %s: %d record(s)\n", name, len(hits))
			break
		}
		return nil
	})
	if err != nil {
		return nil, summary, fmt.Errorf("scanning %s: %w", dir, err)
	}

	inputs := make([]SampleInput, 0, len(bySample))
	for _, s := range bySample {
		inputs = append(inputs, *s)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].SampleID < inputs[j].SampleID })
	summary.Samples = len(inputs)
	return inputs, summary, nil
}

// mergeTyping fills empty fields of dst from src, so MLST and capsule
// typing outputs combine into one record per sample.
func mergeTyping(dst, src *types.Typing) *types.Typing {
	if dst == nil {
		cp := *src
		return &cp
	}
	if dst.Scheme == "" {
		dst.Scheme = src.Scheme
	}
	if dst.SequenceType == "" {
		dst.SequenceType = src.SequenceType
	}
	if len(dst.Alleles) == 0 {
		dst.Alleles = src.Alleles
	}
	if dst.KLocus == "" {
		dst.KLocus = src.KLocus
	}
	if dst.KConfidence == "" {
		dst.KConfidence = src.KConfidence
	}
	if dst.OCLocus == "" {
		dst.OCLocus = src.OCLocus
	}
	return dst
}

// assemblyExts are stripped from sample names; tool pipelines carry the
// assembly filename through into their output names.
var assemblyExts = []string{".fna", ".fasta", ".fa", ".fsa", ".fas", ".gz"}

// toolSuffixes are the per-tool output naming conventions, checked against
// the filename with the extension already removed.
var toolSuffixes = []string{"_amrfinder", "_mlst", "_kaptive"}

// SampleIDFromFilename derives the normalized sample ID from a tool output
// filename: directory and extension dropped, tool suffixes dropped, then
// NormalizeSampleID applied.
func SampleIDFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if i := strings.Index(base, "_abricate"); i >= 0 {
		base = base[:i]
	}
	for _, suf := range toolSuffixes {
		base = strings.TrimSuffix(base, suf)
	}
	return NormalizeSampleID(base)
}

// NormalizeSampleID unifies the sample naming across tools: path and
// assembly extensions dropped, and RefSeq GCF_ accessions folded onto
// their GenBank GCA_ twins so the same genome aggregates under one ID.
func NormalizeSampleID(id string) string {
	id = filepath.Base(strings.TrimSpace(id))
	for stripped := true; stripped; {
		stripped = false
		for _, ext := range assemblyExts {
			if strings.HasSuffix(id, ext) {
				id = strings.TrimSuffix(id, ext)
				stripped = true
			}
		}
	}
	if strings.HasPrefix(id, "GCF_") {
		id = "GCA_" + strings.TrimPrefix(id, "GCF_")
	}
	return id
}
