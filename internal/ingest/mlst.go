// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"os"
	"strings"

	"github.com/Jeffail/gabs"

	"github.com/abxlab/amrscope/pkg/types"
)

// MLSTParser reads mlst JSON output (<sample>_mlst.json). The allele object
// is keyed by scheme-specific locus names, so the document is walked
// dynamically rather than decoded into a fixed struct. MLST is a typing
// tool: it contributes sample metadata, never gene hits.
type MLSTParser struct{}

func (p *MLSTParser) Tool() string { return "mlst" }

func (p *MLSTParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, "_mlst.json")
}

func (p *MLSTParser) Parse(path, sampleID string) ([]types.RawHit, *types.Typing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: parsing mlst json: %v", ErrMalformedInput, path, err)
	}

	// mlst emits a one-element array per input file; tolerate a bare object.
	if children, err := parsed.Children(); err == nil && len(children) > 0 {
		parsed = children[0]
	}

	typing := &types.Typing{
		Scheme:       jsonString(parsed, "scheme"),
		SequenceType: jsonString(parsed, "st", "sequence_type"),
	}
	if typing.Scheme == "" && typing.SequenceType == "" {
		return nil, nil, fmt.Errorf("%w: %s has no scheme or sequence type", ErrMalformedInput, path)
	}

	if alleles, err := parsed.Path("alleles").ChildrenMap(); err == nil && len(alleles) > 0 {
		typing.Alleles = make(map[string]string, len(alleles))
		for locus, v := range alleles {
			typing.Alleles[locus] = jsonScalar(v.Data())
		}
	}
	return nil, typing, nil
}

// jsonString returns the first present key rendered as a string. Tools
// disagree on key names between releases.
func jsonString(c *gabs.Container, keys ...string) string {
	for _, key := range keys {
		if c.Exists(key) {
			if s := jsonScalar(c.Path(key).Data()); s != "" {
				return s
			}
		}
	}
	return ""
}

// jsonScalar renders a JSON scalar as the string the tool printed.
func jsonScalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
