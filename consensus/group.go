package consensus

import (
	"sort"

	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/gencore/umi"
	"github.com/grailbio/hts/sam"
)

// Reference gives access to reference bases as 4-bit codes. A nil Reference
// disables reference-guided tie breaking.
type Reference interface {
	Bases(refID, start, length int) ([]byte, bool)
}

// caller holds what every group needs to turn its fragments into consensus
// fragments.
type caller struct {
	opts      *Opts
	ref       Reference
	pre, post *Stats
}

// Group is the set of fragments that share a cluster key. Fragments are
// matched by query name.
type Group struct {
	frags map[string]*Fragment

	// crossContig is set for groups of reads whose mate is unmapped, on
	// another contig, or not properly paired. Only one side of each pair is
	// present in such a group.
	crossContig bool
	// countMolecules is false on the side of a cross-contig pair whose
	// molecules are counted by the group on the other side.
	countMolecules bool
}

func newGroup(crossContig, countMolecules bool) *Group {
	return &Group{
		frags:          map[string]*Fragment{},
		crossContig:    crossContig,
		countMolecules: countMolecules,
	}
}

func (g *Group) addRecord(r *sam.Record, u string) error {
	if f, ok := g.frags[r.Name]; ok {
		return f.add(r, u)
	}
	g.frags[r.Name] = newFragment(r, u)
	return nil
}

// Len returns the number of fragments in the group.
func (g *Group) Len() int { return len(g.frags) }

// isPE returns true if f stands for a pair of mapped reads. A cross-contig
// group sees one mate only.
func (g *Group) isPE(f *Fragment) bool {
	if f.IsPaired() {
		return true
	}
	return g.crossContig && f.Left != nil && !gbam.HasNoMappedMate(f.Left)
}

// fragments returns the fragments of the group in query name order.
func (g *Group) fragments() []*Fragment {
	frags := make([]*Fragment, 0, len(g.frags))
	for _, f := range g.frags {
		frags = append(frags, f)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].Name() < frags[j].Name() })
	return frags
}

// subClusters splits frags by UMI. Each round takes the most frequent UMI
// still unassigned (ties go to the one seen first) and collects every
// unassigned fragment whose UMI is within threshold of it.
func subClusters(frags []*Fragment, threshold int) [][]*Fragment {
	counts := map[string]int{}
	var order []string
	for _, f := range frags {
		if _, ok := counts[f.umi]; !ok {
			order = append(order, f.umi)
		}
		counts[f.umi]++
	}
	assigned := make([]bool, len(frags))
	var subs [][]*Fragment
	for remaining := len(frags); remaining > 0; {
		top, topCount := "", 0
		for _, u := range order {
			if counts[u] > topCount {
				top, topCount = u, counts[u]
			}
		}
		var sub []*Fragment
		for i, f := range frags {
			if !assigned[i] && umi.Diff(f.umi, top) <= threshold {
				sub = append(sub, f)
				assigned[i] = true
				counts[f.umi]--
				remaining--
			}
		}
		subs = append(subs, sub)
	}
	return subs
}

// resolve turns the group into the consensus fragments to emit. Fragments
// are first split by UMI, each sub-cluster is merged into one fragment, and
// sub-clusters whose UMIs are the swapped halves of each other are merged
// again into duplex fragments.
func (g *Group) resolve(c *caller, threshold int) ([]*Fragment, error) {
	opts := c.opts
	frags := g.fragments()
	hasUMI := false
	for _, f := range frags {
		if f.umi != "" {
			hasUMI = true
		}
	}
	subs := subClusters(frags, threshold)
	if g.countMolecules {
		c.pre.addCluster(len(subs) > 1)
	}

	var singles []*Fragment
	for _, sub := range subs {
		pe := g.isPE(sub[0])
		if f := c.mergeFragments(sub, g.crossContig); f != nil {
			singles = append(singles, f)
		} else if g.countMolecules {
			// The molecule is in the input even without a consensus.
			c.pre.addMolecule(len(sub), pe)
		}
	}

	var results []*Fragment
	keep := func(f *Fragment) error {
		if err := f.writeSupportTags(); err != nil {
			return err
		}
		results = append(results, f)
		return nil
	}
	if hasUMI && !opts.DisableDuplex {
		for len(singles) > 0 {
			p1 := singles[len(singles)-1]
			singles = singles[:len(singles)-1]
			mate := -1
			for i, p2 := range singles {
				if umi.IsDuplex(p1.umi, p2.umi) {
					mate = i
					break
				}
			}
			if mate < 0 {
				if g.countMolecules {
					c.pre.addMolecule(p1.MergeReads, g.isPE(p1))
				}
				if !opts.DuplexOnly && p1.MergeReads >= opts.ClusterSizeReq {
					if g.countMolecules {
						c.post.addSSCS()
					}
					if err := keep(p1); err != nil {
						return nil, err
					}
				}
				continue
			}
			p2 := singles[mate]
			singles = append(singles[:mate], singles[mate+1:]...)
			diff := duplexMerge(p1, p2)
			total := p1.MergeReads + p2.MergeReads
			if g.countMolecules {
				c.pre.addMolecule(total, g.isPE(p1))
			}
			if diff <= opts.DuplexMismatchThreshold && total >= opts.ClusterSizeReq {
				p1.setDuplex(p2.MergeReads)
				if g.countMolecules {
					c.post.addDCS()
				}
				if err := keep(p1); err != nil {
					return nil, err
				}
			}
		}
	} else {
		for _, p := range singles {
			if g.countMolecules {
				c.pre.addMolecule(p.MergeReads, g.isPE(p))
			}
			if !opts.DuplexOnly && p.MergeReads >= opts.ClusterSizeReq {
				if g.countMolecules {
					c.post.addSSCS()
				}
				if err := keep(p); err != nil {
					return nil, err
				}
			}
		}
	}
	if len(results) > 0 && g.countMolecules {
		c.post.addCluster(len(results) > 1)
	}
	return results, nil
}
