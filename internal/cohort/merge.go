// Copyright Abx Labs Ltd., 2026. All rights reserved.

package cohort

import (
	"sort"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

// Merger collapses one sample's candidates into one canonical hit per gene.
// The policy is deterministic regardless of input order: the winning
// numeric values come from the highest identity, ties broken by highest
// coverage, then configured tool priority, then tool name.
type Merger struct {
	Cfg types.MergeConfig
}

// Merge groups candidates by canonical gene and merges each group. The
// returned hits are sorted by canonical name; hits keep the union of
// contributing tools and the raw hits they consumed.
func (m *Merger) Merge(sampleID string, cands []Candidate) []types.CanonicalHit {
	groups := make(map[string][]Candidate)
	var order []string
	for _, c := range cands {
		key := kb.NormalizeIdentifier(c.Def.Canonical)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	sort.Strings(order)

	hits := make([]types.CanonicalHit, 0, len(groups))
	for _, key := range order {
		hits = append(hits, m.mergeGroup(sampleID, groups[key]))
	}
	return hits
}

// mergeGroup merges all candidates for one canonical gene.
func (m *Merger) mergeGroup(sampleID string, group []Candidate) types.CanonicalHit {
	winner := group[0]
	for _, c := range group[1:] {
		if m.beats(c, winner) {
			winner = c
		}
	}

	toolSet := make(map[string]bool, len(group))
	bestByTool := make(map[string]float64, len(group))
	raws := make([]types.RawHit, 0, len(group))
	bestCoverage := 0.0
	for _, c := range group {
		toolSet[c.Raw.Tool] = true
		if v, ok := bestByTool[c.Raw.Tool]; !ok || c.Raw.Identity > v {
			bestByTool[c.Raw.Tool] = c.Raw.Identity
		}
		if c.Raw.Coverage > bestCoverage {
			bestCoverage = c.Raw.Coverage
		}
		raws = append(raws, c.Raw)
	}
	tools := make([]string, 0, len(toolSet))
	for t := range toolSet {
		tools = append(tools, t)
	}
	sort.Strings(tools)

	// Keep merged raw hits in a stable order so re-merging reproduces
	// identical fields.
	sort.Slice(raws, func(i, j int) bool {
		if raws[i].Tool != raws[j].Tool {
			return raws[i].Tool < raws[j].Tool
		}
		if raws[i].Identity != raws[j].Identity {
			return raws[i].Identity > raws[j].Identity
		}
		return raws[i].Database < raws[j].Database
	})

	hit := types.CanonicalHit{
		SampleID: sampleID,
		Gene:     winner.Def,
		Identity: winner.Raw.Identity,
		Coverage: bestCoverage,
		Tools:    tools,
		Merged:   raws,
	}

	if d := discrepancy(bestByTool, m.Cfg.DiscrepancyThreshold); d != nil {
		hit.Discrepancy = d
	}
	return hit
}

// beats reports whether candidate a wins over b under the merge policy.
func (m *Merger) beats(a, b Candidate) bool {
	if a.Raw.Identity != b.Raw.Identity {
		return a.Raw.Identity > b.Raw.Identity
	}
	if a.Raw.Coverage != b.Raw.Coverage {
		return a.Raw.Coverage > b.Raw.Coverage
	}
	ra, rb := m.toolRank(a.Raw.Tool), m.toolRank(b.Raw.Tool)
	if ra != rb {
		return ra < rb
	}
	return a.Raw.Tool < b.Raw.Tool
}

// toolRank is the position in the configured priority list; unlisted tools
// rank after all listed ones.
func (m *Merger) toolRank(tool string) int {
	for i, t := range m.Cfg.ToolPriority {
		if t == tool {
			return i
		}
	}
	return len(m.Cfg.ToolPriority)
}

// discrepancy builds the disagreement record when per-tool best identities
// spread wider than the threshold. One tool alone can never disagree with
// itself, however spread its raw hits.
func discrepancy(bestByTool map[string]float64, threshold float64) *types.Discrepancy {
	if len(bestByTool) < 2 {
		return nil
	}
	first := true
	var min, max float64
	for _, v := range bestByTool {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min <= threshold {
		return nil
	}
	byTool := make(map[string]float64, len(bestByTool))
	for t, v := range bestByTool {
		byTool[t] = v
	}
	return &types.Discrepancy{Min: min, Max: max, ByTool: byTool}
}
