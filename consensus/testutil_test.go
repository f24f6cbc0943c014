package consensus

import (
	"fmt"
	"strings"

	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/hts/sam"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 1000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 2000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})

	r1F = sam.Paired | sam.ProperPair | sam.Read1 | sam.MateReverse
	r2R = sam.Paired | sam.ProperPair | sam.Read2 | sam.Reverse
	s1F = sam.Paired | sam.Read1 | sam.MateUnmapped
	u2  = sam.Paired | sam.Read2 | sam.Unmapped
	sec = sam.Paired | sam.Read1 | sam.Secondary
)

// phred converts a FASTQ quality string to raw qualities.
func phred(s string) []byte {
	q := make([]byte, len(s))
	for i := range s {
		q[i] = s[i] - 33
	}
	return q
}

// NewRecordSeq creates a record aligned without clipping or indels.
func NewRecordSeq(name string, ref *sam.Reference, pos int, flags sam.Flags, matePos int, mateRef *sam.Reference,
	tlen int, seq, qual string) *sam.Record {
	if len(seq) != len(qual) {
		panic("seq and qual must be equal length")
	}
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MatePos = matePos
	r.MateRef = mateRef
	r.Flags = flags
	r.TempLen = tlen
	r.MapQ = 60
	if flags&sam.Unmapped == 0 {
		r.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(seq))}
	} else {
		r.Cigar = nil
	}
	r.Seq = sam.NewSeq([]byte(seq))
	r.Qual = phred(qual)
	r.AuxFields = nil
	return r
}

// NewPair creates a proper pair whose left mate starts at pos and right mate
// at matePos.
func NewPair(name string, ref *sam.Reference, pos, matePos int, seq1, qual1, seq2, qual2 string) (*sam.Record, *sam.Record) {
	tlen := matePos + len(seq2) - pos
	a := NewRecordSeq(name, ref, pos, r1F, matePos, ref, tlen, seq1, qual1)
	b := NewRecordSeq(name, ref, matePos, r2R, pos, ref, -tlen, seq2, qual2)
	return a, b
}

// NewAux creates an aux field or panics.
func NewAux(name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	if err != nil {
		panic(fmt.Sprintf("error creating %s %v tag: %v", name, val, err))
	}
	return aux
}

func seqString(r *sam.Record) string { return string(r.Seq.Expand()) }

func qualString(r *sam.Record) string {
	var b strings.Builder
	for _, q := range r.Qual {
		b.WriteByte(q + 33)
	}
	return b.String()
}

func intAux(r *sam.Record, tag string) int {
	v, ok := gbam.IntAux(r, sam.NewTag(tag))
	if !ok {
		return -1
	}
	return v
}

// recordSink collects the records written to it.
type recordSink struct {
	recs []*sam.Record
}

func (s *recordSink) Write(r *sam.Record) error {
	s.recs = append(s.recs, r)
	return nil
}

// fakeReference serves bases from in-memory strings, one per reference ID.
type fakeReference []string

func (f fakeReference) Bases(refID, start, length int) ([]byte, bool) {
	if refID < 0 || refID >= len(f) || start < 0 || start+length > len(f[refID]) {
		return nil, false
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = gbam.BaseToNibble(f[refID][start+i])
	}
	return b, true
}

func newTestCaller(opts Opts, ref Reference) *caller {
	return &caller{opts: &opts, ref: ref, pre: &Stats{}, post: &Stats{}}
}
