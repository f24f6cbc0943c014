package consensus

import (
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

var (
	// forwardSupportTag counts the reads supporting a consensus read.
	forwardSupportTag = sam.NewTag("FR")
	// reverseSupportTag counts the reads of the complementary strand of a
	// duplex consensus.
	reverseSupportTag = sam.NewTag("RR")
	editDistanceTag   = sam.NewTag("NM")
)

// Fragment is one sequenced molecule: a record and, once it arrives, its
// mate. The first record added becomes Left.
type Fragment struct {
	Left, Right *sam.Record
	umi         string

	// MergeReads is the number of reads merged into this fragment. It is 1
	// for a fragment read from the input.
	MergeReads int
	// ReverseMergeReads is the number of reads of the complementary strand,
	// set only for duplex consensus fragments.
	ReverseMergeReads int
	// LeftDiff and RightDiff count the bases changed by consensus calling.
	LeftDiff, RightDiff int

	duplex bool
	tagged bool

	scored                bool
	leftScore, rightScore []byte
}

func newFragment(r *sam.Record, umi string) *Fragment {
	return &Fragment{Left: r, umi: umi, MergeReads: 1}
}

// add attaches the mate of the fragment's first record.
func (f *Fragment) add(r *sam.Record, umi string) error {
	if f.Right != nil {
		return errors.E(errors.Integrity, "more than two primary records named", r.Name)
	}
	if umi != f.umi {
		return errors.E(errors.Integrity, "mates", r.Name, "carry different UMIs:", f.umi, umi)
	}
	f.Right = r
	f.scored = false
	return nil
}

// Name returns the query name shared by the records of the fragment.
func (f *Fragment) Name() string {
	if f.Left != nil {
		return f.Left.Name
	}
	if f.Right != nil {
		return f.Right.Name
	}
	return ""
}

// UMI returns the UMI of the fragment, or "".
func (f *Fragment) UMI() string { return f.umi }

// IsPaired returns true if both mates are present.
func (f *Fragment) IsPaired() bool { return f.Left != nil && f.Right != nil }

// IsDuplex returns true for a fragment made from both strands of a molecule.
func (f *Fragment) IsDuplex() bool { return f.duplex }

// Records returns the records of the fragment, left first.
func (f *Fragment) Records() []*sam.Record {
	recs := make([]*sam.Record, 0, 2)
	if f.Left != nil {
		recs = append(recs, f.Left)
	}
	if f.Right != nil {
		recs = append(recs, f.Right)
	}
	return recs
}

// setDuplex marks the fragment as a duplex consensus whose complementary
// strand was supported by reverseReads reads.
func (f *Fragment) setDuplex(reverseReads int) {
	f.duplex = true
	f.ReverseMergeReads = reverseReads
}

func clampUint16(n int) uint16 {
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	if n < 0 {
		return 0
	}
	return uint16(n)
}

// dropTags removes the given tags, left over from an earlier run, in place.
func dropTags(fields sam.AuxFields, tags ...sam.Tag) sam.AuxFields {
	out := fields[:0]
	for _, aux := range fields {
		keep := true
		for _, t := range tags {
			if aux.Tag() == t {
				keep = false
			}
		}
		if keep {
			out = append(out, aux)
		}
	}
	return out
}

// writeSupportTags adds the supporting read counts to every record of the
// fragment. It may be called once.
func (f *Fragment) writeSupportTags() error {
	if f.tagged {
		return errors.E(errors.Integrity, "support tags written twice for", f.Name())
	}
	f.tagged = true
	for _, r := range f.Records() {
		r.AuxFields = dropTags(r.AuxFields, forwardSupportTag, reverseSupportTag)
		aux, err := sam.NewAux(forwardSupportTag, clampUint16(f.MergeReads))
		if err != nil {
			return errors.E(err, r.Name)
		}
		r.AuxFields = append(r.AuxFields, aux)
		if f.duplex {
			if aux, err = sam.NewAux(reverseSupportTag, clampUint16(f.ReverseMergeReads)); err != nil {
				return errors.E(err, r.Name)
			}
			r.AuxFields = append(r.AuxFields, aux)
		}
	}
	return nil
}
