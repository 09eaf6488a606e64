// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- fixtures ---

const sampleAMRFinderTSV = `Protein identifier	Contig id	Start	Stop	Strand	Gene symbol	Sequence name	Scope	Element type	Element subtype	Class	Subclass	Method	Target length	Reference sequence length	% Coverage of reference sequence	% Identity to reference sequence	Alignment length	Accession of closest sequence	Name of closest sequence	HMM id	HMM description
NA	contig00012	100	925	+	blaOXA-23	OXA-23 family carbapenem-hydrolyzing class D beta-lactamase	core	AMR	AMR	BETA-LACTAM	CARBAPENEM	BLASTX	273	273	100.00	100.00	273	WP_000932433.1	carbapenem-hydrolyzing class D beta-lactamase OXA-23	NA	NA
NA	contig00003	2001	3650	-	adeB	multidrug efflux RND transporter permease subunit AdeB	core	AMR	AMR	EFFLUX	EFFLUX	BLASTX	1035	1035	99.50	98.70	1035	WP_000622302.1	multidrug efflux RND transporter AdeB	NA	NA
`

const sampleAbricateTSV = `#FILE	SEQUENCE	START	END	STRAND	GENE	COVERAGE	COVERAGE_MAP	GAPS	%COVERAGE	%IDENTITY	DATABASE	ACCESSION	PRODUCT	RESISTANCE
sample1.fna	contig00012	150	975	+	OXA-23	1-825/825	===============	0/0	100.00	99.88	card	AY795964	class D beta-lactamase OXA-23	carbapenem
sample1.fna	contig00007	500	1540	+	mcr-1	1-1041/1041	===============	0/0	95.20	97.10	card	KP347127	phosphoethanolamine transferase MCR-1	colistin
`

const sampleMLSTJSON = `[{"filename":"sample1.fna","scheme":"abaumannii_2","st":2,"alleles":{"cpn60":"2","fusA":"2","gltA":"2","pyrG":"2","recA":"2","rplB":"2","rpoB":"2"}}]`

const sampleKaptiveTSV = `Assembly	Best match locus	Best match type	Match confidence	Problems	Identity	Coverage
sample1	KL3	K3	Very high	None	99.95	100.00
sample1	OCL1	O1	High	None	98.50	100.00
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// --- AMRFinder ---

func TestAMRFinderParse(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_amrfinder.tsv", sampleAMRFinderTSV)

	p := &AMRFinderParser{}
	hits, typing, err := p.Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if typing != nil {
		t.Errorf("typing = %+v, want nil", typing)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}

	h := hits[0]
	if h.Gene != "blaOXA-23" {
		t.Errorf("gene = %q, want blaOXA-23", h.Gene)
	}
	if h.Identity != 100.0 || h.Coverage != 100.0 {
		t.Errorf("identity/coverage = %v/%v, want 100/100", h.Identity, h.Coverage)
	}
	if h.Tool != "amrfinder" || h.SampleID != "sample1" {
		t.Errorf("tool/sample = %q/%q", h.Tool, h.SampleID)
	}
	if h.Contig != "contig00012" || h.Start != 100 || h.End != 925 {
		t.Errorf("location = %s:%d-%d, want contig00012:100-925", h.Contig, h.Start, h.End)
	}
	if h.Accession != "WP_000932433.1" {
		t.Errorf("accession = %q", h.Accession)
	}
}

func TestAMRFinderMissingColumn(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_amrfinder.tsv",
		"Contig id\tStart\ncontig1\t100\n")

	_, _, err := (&AMRFinderParser{}).Parse(path, "sample1")
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("Parse() error = %v, want ErrMalformedInput", err)
	}
	if err == nil || !strings.Contains(err.Error(), "gene symbol") {
		t.Errorf("Parse() error = %v, want the missing column named", err)
	}
}

// --- ABRicate ---

func TestAbricateParse(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_abricate_card.tsv", sampleAbricateTSV)

	hits, _, err := (&AbricateParser{}).Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Gene != "OXA-23" || hits[0].Identity != 99.88 {
		t.Errorf("first hit = %q/%v, want OXA-23/99.88", hits[0].Gene, hits[0].Identity)
	}
	if hits[0].Database != "card" {
		t.Errorf("database = %q, want card", hits[0].Database)
	}
	if hits[1].Gene != "mcr-1" || hits[1].Coverage != 95.2 {
		t.Errorf("second hit = %q/%v, want mcr-1/95.2", hits[1].Gene, hits[1].Coverage)
	}
}

func TestAbricateRaggedRow(t *testing.T) {
	// Last row misses the trailing RESISTANCE and PRODUCT fields.
	fixture := `#FILE	SEQUENCE	START	END	STRAND	GENE	COVERAGE	COVERAGE_MAP	GAPS	%COVERAGE	%IDENTITY	DATABASE	ACCESSION	PRODUCT	RESISTANCE
sample1.fna	c1	1	900	+	tet(X)	1-900/900	====	0/0	88.00	91.00	card	ACC1
`
	path := writeFixture(t, t.TempDir(), "sample1_abricate_card.tsv", fixture)

	hits, _, err := (&AbricateParser{}).Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	if hits[0].Gene != "tet(X)" || hits[0].Product != "" {
		t.Errorf("hit = %q product %q, want tet(X) with empty product", hits[0].Gene, hits[0].Product)
	}
}

func TestAbricateDatabaseFallsBackToFilename(t *testing.T) {
	fixture := `#FILE	SEQUENCE	GENE	%COVERAGE	%IDENTITY
sample1.fna	c1	merA	90.00	95.00
`
	path := writeFixture(t, t.TempDir(), "sample1_abricate_bacmet2.tsv", fixture)

	hits, _, err := (&AbricateParser{}).Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if hits[0].Database != "bacmet2" {
		t.Errorf("database = %q, want bacmet2 (from filename)", hits[0].Database)
	}
}

func TestAbricateRejectsForeignTable(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_abricate_card.tsv",
		"GENE\tSCORE\nblaOXA-23\t1\n")

	_, _, err := (&AbricateParser{}).Parse(path, "sample1")
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("Parse() error = %v, want ErrMalformedInput", err)
	}
}

// --- MLST ---

func TestMLSTParse(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_mlst.json", sampleMLSTJSON)

	hits, typing, err := (&MLSTParser{}).Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if hits != nil {
		t.Errorf("hits = %v, want nil (typing tool)", hits)
	}
	if typing == nil {
		t.Fatal("typing = nil, want record")
	}
	if typing.Scheme != "abaumannii_2" {
		t.Errorf("scheme = %q, want abaumannii_2", typing.Scheme)
	}
	if typing.SequenceType != "2" {
		t.Errorf("sequence type = %q, want 2 (numeric ST rendered as string)", typing.SequenceType)
	}
	if len(typing.Alleles) != 7 || typing.Alleles["gltA"] != "2" {
		t.Errorf("alleles = %v, want 7 loci with gltA=2", typing.Alleles)
	}
}

func TestMLSTBareObject(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "s_mlst.json",
		`{"scheme":"abaumannii","sequence_type":"ST25","alleles":{}}`)

	_, typing, err := (&MLSTParser{}).Parse(path, "s")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if typing.SequenceType != "ST25" {
		t.Errorf("sequence type = %q, want ST25", typing.SequenceType)
	}
}

func TestMLSTMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"scheme": `},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, t.TempDir(), "s_mlst.json", tt.content)
			_, _, err := (&MLSTParser{}).Parse(path, "s")
			if err == nil {
				t.Error("Parse() error = nil, want error")
			}
		})
	}
}

// --- Kaptive ---

func TestKaptiveParse(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "sample1_kaptive.tsv", sampleKaptiveTSV)

	_, typing, err := (&KaptiveParser{}).Parse(path, "sample1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if typing.KLocus != "KL3" || typing.KConfidence != "Very high" {
		t.Errorf("K locus = %q (%q), want KL3 (Very high)", typing.KLocus, typing.KConfidence)
	}
	if typing.OCLocus != "OCL1" {
		t.Errorf("OC locus = %q, want OCL1", typing.OCLocus)
	}
}

// --- sample ID derivation ---

func TestSampleIDFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"sample1_amrfinder.tsv", "sample1"},
		{"sample1_abricate_card.tsv", "sample1"},
		{"sample1_abricate_ecoli_vf.tsv", "sample1"},
		{"sample2.fna_mlst.json", "sample2"},
		{"sample3_kaptive.tsv", "sample3"},
		{"GCF_000123.1_abricate_card.tsv", "GCA_000123.1"},
		{"A-baumannii_AB0057_amrfinder.tsv", "A-baumannii_AB0057"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := SampleIDFromFilename(tt.filename); got != tt.want {
				t.Errorf("SampleIDFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestNormalizeSampleID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sample1.fasta", "sample1"},
		{"sample1.fna.gz", "sample1"},
		{"/data/assemblies/sample1.fna", "sample1"},
		{"GCF_000746645.1", "GCA_000746645.1"},
		{"GCA_000746645.1", "GCA_000746645.1"},
		{" ab123 ", "ab123"},
	}
	for _, tt := range tests {
		if got := NormalizeSampleID(tt.in); got != tt.want {
			t.Errorf("NormalizeSampleID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Scan ---

func TestScanGroupsBySample(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "sample1_amrfinder.tsv", sampleAMRFinderTSV)
	writeFixture(t, dir, "sample1_abricate_card.tsv", sampleAbricateTSV)
	writeFixture(t, dir, "sample1_mlst.json", sampleMLSTJSON)
	writeFixture(t, dir, "sample1_kaptive.tsv", sampleKaptiveTSV)
	writeFixture(t, dir, "sample2_amrfinder.tsv", sampleAMRFinderTSV)
	writeFixture(t, dir, "notes.txt", "not a tool output")

	var buf bytes.Buffer
	inputs, summary, err := Scan(dir, DefaultParsers(), &buf)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(inputs) != 2 {
		t.Fatalf("len(inputs) = %d, want 2", len(inputs))
	}
	if inputs[0].SampleID != "sample1" || inputs[1].SampleID != "sample2" {
		t.Errorf("sample order = %q, %q, want sample1, sample2", inputs[0].SampleID, inputs[1].SampleID)
	}

	s1 := inputs[0]
	if len(s1.Hits) != 4 {
		t.Errorf("sample1 hits = %d, want 4 (2 amrfinder + 2 abricate)", len(s1.Hits))
	}
	if s1.Typing == nil || s1.Typing.SequenceType != "2" || s1.Typing.KLocus != "KL3" {
		t.Errorf("sample1 typing = %+v, want merged mlst+kaptive", s1.Typing)
	}

	if summary.Files != 5 || summary.Failed != 0 || summary.Samples != 2 {
		t.Errorf("summary = %+v, want 5 files, 0 failed, 2 samples", summary)
	}
	if summary.Records["amrfinder"] != 4 || summary.Records["abricate"] != 2 {
		t.Errorf("records = %v, want amrfinder 4, abricate 2", summary.Records)
	}
}

func TestScanAbsorbsParseFailures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "good_amrfinder.tsv", sampleAMRFinderTSV)
	writeFixture(t, dir, "bad_amrfinder.tsv", "garbage without columns\n")

	var buf bytes.Buffer
	inputs, summary, err := Scan(dir, DefaultParsers(), &buf)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary.Failed = %d, want 1", summary.Failed)
	}
	if len(summary.FailedFiles) != 1 || !strings.HasPrefix(summary.FailedFiles[0], "bad_amrfinder.tsv: ") {
		t.Errorf("summary.FailedFiles = %v, want one entry for bad_amrfinder.tsv", summary.FailedFiles)
	}

	var bad *SampleInput
	for i := range inputs {
		if inputs[i].SampleID == "bad" {
			bad = &inputs[i]
		}
	}
	if bad == nil {
		t.Fatal("malformed sample missing from scan output")
	}
	if !bad.Empty() || len(bad.Problems) != 1 {
		t.Errorf("bad sample: empty=%v problems=%v, want empty with 1 problem", bad.Empty(), bad.Problems)
	}
	if !strings.Contains(buf.String(), "failed bad_amrfinder.tsv") {
		t.Errorf("progress output missing failure line: %q", buf.String())
	}
}
