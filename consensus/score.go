package consensus

import (
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/hts/sam"
)

// scores returns the per-base evidence scores of the left and right records.
// They are computed on first use. Computing them lowers the qualities of the
// bases on which the two mates disagree.
func (f *Fragment) scores(opts *Opts) (left, right []byte) {
	if !f.scored {
		f.leftScore = tierScores(opts, f.Left)
		f.rightScore = tierScores(opts, f.Right)
		if f.IsPaired() {
			if f.Left.Pos <= f.Right.Pos {
				scoreOverlap(opts, f.Left, f.Right, f.leftScore, f.rightScore)
			} else {
				scoreOverlap(opts, f.Right, f.Left, f.rightScore, f.leftScore)
			}
		}
		f.scored = true
	}
	return f.leftScore, f.rightScore
}

func qualAt(r *sam.Record, i int) byte {
	if i >= len(r.Qual) || r.Qual[i] == 0xff {
		return 0
	}
	return r.Qual[i]
}

// tierScore is the score of a base that has no opposing evidence from the
// mate.
func tierScore(opts *Opts, q int) byte {
	switch {
	case q >= opts.HighQuality:
		return byte(opts.ScoreHighQuality)
	case q >= opts.ModerateQuality:
		return byte(opts.ScoreModerateQuality)
	case q >= opts.LowQuality:
		return byte(opts.ScoreLowQuality)
	}
	return byte(opts.ScoreBadQuality)
}

func tierScores(opts *Opts, r *sam.Record) []byte {
	if r == nil {
		return nil
	}
	s := make([]byte, r.Seq.Length)
	for i := range s {
		s[i] = tierScore(opts, int(qualAt(r, i)))
	}
	return s
}

// scoreOverlap rescores the bases where the first M blocks of the mates
// overlap on the reference. left must not start after right.
func scoreOverlap(opts *Opts, left, right *sam.Record, ls, rs []byte) {
	if left.Ref.ID() != right.Ref.ID() || gbam.IsUnplaced(left) || gbam.IsUnplaced(right) {
		return
	}
	lOff, lLen := gbam.FirstMatch(left)
	rOff, rLen := gbam.FirstMatch(right)
	posDis := right.Pos - left.Pos
	if lLen == 0 || rLen == 0 || posDis >= lLen {
		return
	}
	overlap := lLen - posDis
	if rLen < overlap {
		overlap = rLen
	}
	for i := 0; i < overlap; i++ {
		l, r := i+lOff+posDis, i+rOff
		if l >= left.Seq.Length || r >= right.Seq.Length {
			return
		}
		lq, rq := int(qualAt(left, l)), int(qualAt(right, r))
		if gbam.BaseAt(left.Seq, l) == gbam.BaseAt(right.Seq, r) {
			s := byte(opts.ScoreLowQualityMatch)
			if lq >= opts.HighQuality && rq >= opts.HighQuality {
				s = byte(opts.ScoreHighQualityMatch)
			}
			ls[l], rs[r] = s, s
			continue
		}
		switch {
		case lq == rq:
			s := byte(opts.ScoreBothLowQualityMismatch)
			if lq >= opts.HighQuality {
				s = byte(opts.ScoreBothHighQualityMismatch)
			} else if lq >= opts.ModerateQuality {
				s = byte(opts.ScoreBothModerateQualityMismatch)
			}
			ls[l], rs[r] = s, s
		case lq > rq:
			ls[l], rs[r] = byte(opts.ScoreUnbalancedMismatchHighQuality), byte(opts.ScoreUnbalancedMismatchLowQuality)
		default:
			ls[l], rs[r] = byte(opts.ScoreUnbalancedMismatchLowQuality), byte(opts.ScoreUnbalancedMismatchHighQuality)
		}
		setQual(left, l, lq-rq)
		setQual(right, r, rq-lq)
	}
}

func setQual(r *sam.Record, i, q int) {
	if i >= len(r.Qual) {
		return
	}
	if q < 0 {
		q = 0
	}
	r.Qual[i] = byte(q)
}
