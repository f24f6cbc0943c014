package consensus

import (
	"strings"
	"testing"

	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hq10    = "DDDDDDDDDD"
	right10 = "TTGCATTGCA"
)

// pairFragment creates a proper pair whose mates do not overlap.
func pairFragment(t *testing.T, name, umi, leftSeq, leftQual string) *Fragment {
	a, b := NewPair(name, chr1, 0, 100, leftSeq, leftQual, right10, hq10)
	f := newFragment(a, umi)
	require.NoError(t, f.add(b, umi))
	return f
}

func TestMergeSingleFragment(t *testing.T) {
	c := newTestCaller(DefaultOpts, nil)
	f := pairFragment(t, "A:UMI_AAAA", "AAAA", "ACGTACGTAC", hq10)
	assert.True(t, f == c.mergeFragments([]*Fragment{f}, false))
	assert.Equal(t, 1, f.MergeReads)
}

func TestMergeMajority(t *testing.T) {
	c := newTestCaller(DefaultOpts, nil)
	frags := []*Fragment{
		pairFragment(t, "a:UMI_AAAA", "AAAA", "ACTTACGTAC", hq10),
		pairFragment(t, "b:UMI_AAAA", "AAAA", "ACGTACGTAC", hq10),
		pairFragment(t, "c:UMI_AAAA", "AAAA", "ACGTACGTAC", hq10),
	}
	out := c.mergeFragments(frags, false)
	require.NotNil(t, out)
	assert.Equal(t, 3, out.MergeReads)
	assert.Equal(t, 1, out.LeftDiff)
	assert.Equal(t, 0, out.RightDiff)
	assert.Equal(t, "ACGTACGTAC", seqString(out.Left))
	assert.Equal(t, right10, seqString(out.Right))
	assert.Equal(t, hq10, qualString(out.Left))
	assert.Equal(t, "a:UMI_AAAA", out.Left.Name)
	assert.Equal(t, "a:UMI_AAAA", out.Right.Name)
	assert.Equal(t, "AAAA", out.UMI())
	// The template records moved to the consensus.
	assert.Nil(t, frags[0].Left)
	assert.Nil(t, frags[0].Right)
}

func TestMergeLowQualityMismatch(t *testing.T) {
	c := newTestCaller(DefaultOpts, nil)
	frags := []*Fragment{
		pairFragment(t, "a:UMI_AAAA", "AAAA", "ACTTACGTAC", "DD+DDDDDDD"),
		pairFragment(t, "b:UMI_AAAA", "AAAA", "ACGTACGTAC", hq10),
	}
	out := c.mergeFragments(frags, false)
	require.NotNil(t, out)
	assert.Equal(t, "ACGTACGTAC", seqString(out.Left))
	assert.True(t, out.LeftDiff <= 1)
	assert.Equal(t, 2, out.MergeReads)
}

func TestMergeUsesReference(t *testing.T) {
	ref := fakeReference{"ACGTACGTAC" + strings.Repeat("G", 90) + right10}
	c := newTestCaller(DefaultOpts, ref)
	frags := []*Fragment{
		pairFragment(t, "a:UMI_AAAA", "AAAA", "ACTTACGTAC", hq10),
		pairFragment(t, "b:UMI_AAAA", "AAAA", "ACGTACGTAC", hq10),
	}
	frags[0].Left.AuxFields = append(frags[0].Left.AuxFields, NewAux("NM", uint8(1)))
	out := c.mergeFragments(frags, false)
	require.NotNil(t, out)
	assert.Equal(t, "ACGTACGTAC", seqString(out.Left))
	assert.Equal(t, hq10, qualString(out.Left))
	assert.Equal(t, 1, out.LeftDiff)
	assert.Equal(t, 0, intAux(out.Left, "NM"))
}

func TestMergeRevertsDriftFromReference(t *testing.T) {
	ref := fakeReference{"AAAAAAAAAA"}
	c := newTestCaller(DefaultOpts, ref)
	frags := []*Fragment{
		pairFragment(t, "a:UMI_AAAA", "AAAA", "AAAAAAAAAA", "++++++DDDD"),
		pairFragment(t, "b:UMI_AAAA", "AAAA", "TTTTTTAAAA", hq10),
		pairFragment(t, "c:UMI_AAAA", "AAAA", "TTTTTTAAAA", hq10),
	}
	out := c.mergeFragments(frags, false)
	require.NotNil(t, out)
	assert.Equal(t, "AAAAAAAAAA", seqString(out.Left))
	assert.Equal(t, "++++++DDDD", qualString(out.Left))
	assert.Equal(t, 0, out.LeftDiff)
}

func TestMergeCrossContigName(t *testing.T) {
	c := newTestCaller(DefaultOpts, nil)
	var frags []*Fragment
	for _, name := range []string{"zz:UMI_AAAA", "bbb:UMI_AAAA", "yy:UMI_AAAA"} {
		r := NewRecordSeq(name, chr1, 10, s1F, -1, nil, 0, "ACGTACGTAC", hq10)
		frags = append(frags, newFragment(r, "AAAA"))
	}
	out := c.mergeFragments(frags, true)
	require.NotNil(t, out)
	assert.Nil(t, out.Right)
	assert.Equal(t, "yy:UMI_AAAA", out.Left.Name)
	assert.Equal(t, 3, out.MergeReads)
}

func TestMergeRejectsPoorlySupportedTemplate(t *testing.T) {
	c := newTestCaller(DefaultOpts, nil)
	cigars := []sam.Cigar{
		{sam.NewCigarOp(sam.CigarMatch, 10)},
		{sam.NewCigarOp(sam.CigarSoftClipped, 2), sam.NewCigarOp(sam.CigarMatch, 8)},
		{sam.NewCigarOp(sam.CigarMatch, 4), sam.NewCigarOp(sam.CigarInsertion, 2), sam.NewCigarOp(sam.CigarMatch, 4)},
		{sam.NewCigarOp(sam.CigarMatch, 8), sam.NewCigarOp(sam.CigarSoftClipped, 2)},
		{sam.NewCigarOp(sam.CigarMatch, 2), sam.NewCigarOp(sam.CigarDeletion, 1), sam.NewCigarOp(sam.CigarMatch, 8)},
		{sam.NewCigarOp(sam.CigarMatch, 3), sam.NewCigarOp(sam.CigarInsertion, 1), sam.NewCigarOp(sam.CigarMatch, 6)},
	}
	var frags []*Fragment
	for i, cigar := range cigars {
		r := NewRecordSeq(string('a'+rune(i))+":UMI_AAAA", chr1, 10, s1F, -1, nil, 0, "ACGTACGTAC", hq10)
		r.Cigar = cigar
		frags = append(frags, newFragment(r, "AAAA"))
	}
	// No read is contained in 40% of the others.
	assert.Nil(t, c.mergeFragments(frags, true))
}

func TestLowComplexity(t *testing.T) {
	opts := DefaultOpts
	opts.SkipLowComplexityClusterThreshold = 2
	c := newTestCaller(opts, nil)
	cigars := []sam.Cigar{
		{sam.NewCigarOp(sam.CigarMatch, 10)},
		{sam.NewCigarOp(sam.CigarSoftClipped, 1), sam.NewCigarOp(sam.CigarMatch, 9)},
		{sam.NewCigarOp(sam.CigarMatch, 9), sam.NewCigarOp(sam.CigarSoftClipped, 1)},
	}
	var frags []*Fragment
	for i, cigar := range cigars {
		r := NewRecordSeq(string('a'+rune(i))+":UMI_AAAA", chr1, 10, s1F, -1, nil, 0, "AAAAAAAAAT", hq10)
		r.Cigar = cigar
		frags = append(frags, newFragment(r, "AAAA"))
	}
	get := func(f *Fragment) *sam.Record { return f.Left }
	assert.True(t, c.lowComplexity(frags, get))

	frags[0].Left.Seq = sam.NewSeq([]byte("ACGTACGTAC"))
	assert.False(t, c.lowComplexity(frags, get))

	// Fewer distinct alignments than reads.
	frags[0].Left.Seq = sam.NewSeq([]byte("AAAAAAAAAT"))
	c.opts.LowComplexityCigarRatio = 1
	assert.False(t, c.lowComplexity(frags, get))
}

func TestDuplexMergeRecords(t *testing.T) {
	a := NewRecordSeq("A", chr1, 0, s1F, -1, nil, 0, "ACGT", "DDDD")
	b := NewRecordSeq("B", chr1, 0, s1F, -1, nil, 0, "ACCTA", "DDDDD")
	assert.Equal(t, 2, duplexMergeRecords(a, b))
	assert.Equal(t, "ACNT", seqString(a))
	assert.Equal(t, "ACNTA", seqString(b))
	assert.Equal(t, byte(0), a.Qual[2])
	assert.Equal(t, byte(0), b.Qual[2])
	assert.Equal(t, byte(35), a.Qual[1])
	assert.Equal(t, gbam.NibbleN, gbam.BaseAt(a.Seq, 2))
}

func TestDuplexMerge(t *testing.T) {
	p1 := pairFragment(t, "a:UMI_AAA_CCC", "AAA_CCC", "ACGTACGTAC", hq10)
	p2 := pairFragment(t, "b:UMI_CCC_AAA", "CCC_AAA", "ACGTACGTAC", hq10)
	assert.Equal(t, 0, duplexMerge(p1, p2))

	p3 := pairFragment(t, "c:UMI_CCC_AAA", "CCC_AAA", "ACGTTCGTAA", hq10)
	assert.Equal(t, 2, duplexMerge(p1, p3))
	assert.Equal(t, "ACGTNCGTAN", seqString(p1.Left))
	assert.Equal(t, right10, seqString(p1.Right))
}
