package consensus

import (
	"math"

	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/hts/sam"
)

// maxMismatchIncrease is the largest growth of the edit distance to the
// reference that a consensus read may show before it is reverted to its
// template.
const maxMismatchIncrease = 5

// minTemplateSupport is the share of the fragments that must contain the
// chosen template.
const minTemplateSupport = 0.4

// mergeFragments merges the fragments of one UMI sub-cluster into a single
// fragment. It returns nil if neither side yields a consensus read. The
// records chosen as templates are moved to the result, the other records are
// dropped.
func (c *caller) mergeFragments(frags []*Fragment, crossContig bool) *Fragment {
	if len(frags) == 1 {
		return frags[0]
	}
	umiOf := make(map[string]string, len(frags))
	for _, f := range frags {
		f.scores(c.opts)
		umiOf[f.Name()] = f.umi
	}
	nameToCopy := ""
	if crossContig {
		// Both sides of a cross-contig pair pick the same name: the smallest
		// of the shortest names.
		for _, f := range frags {
			if f.Left == nil {
				continue
			}
			n := f.Left.Name
			if nameToCopy == "" || len(n) < len(nameToCopy) || (len(n) == len(nameToCopy) && n < nameToCopy) {
				nameToCopy = n
			}
		}
	}
	left, leftDiff := c.mergeMates(frags, true)
	right, rightDiff := c.mergeMates(frags, false)
	if left == nil && right == nil {
		return nil
	}
	switch {
	case crossContig:
		if left != nil && nameToCopy != "" {
			left.Name = nameToCopy
		}
	case left != nil && right != nil:
		if len(left.Name) <= len(right.Name) {
			right.Name = left.Name
		} else {
			left.Name = right.Name
		}
	}
	out := &Fragment{
		Left:       left,
		Right:      right,
		MergeReads: len(frags),
		LeftDiff:   leftDiff,
		RightDiff:  rightDiff,
	}
	out.umi = umiOf[out.Name()]
	return out
}

// mergeMates builds the consensus of the left (or right) records of frags.
// It returns nil if the group is rejected as low complexity or no record is
// contained in enough of the others to serve as a template.
func (c *caller) mergeMates(frags []*Fragment, isLeft bool) (*sam.Record, int) {
	opts := c.opts
	get := func(f *Fragment) *sam.Record {
		if isLeft {
			return f.Left
		}
		return f.Right
	}
	score := func(f *Fragment) []byte {
		if isLeft {
			return f.leftScore
		}
		return f.rightScore
	}
	n := len(frags)
	large := n > opts.SkipLowComplexityClusterThreshold
	if large && c.lowComplexity(frags, get) {
		return nil, 0
	}

	// Right mates that all start at the same position are aligned on their
	// start, like left mates.
	leftMode := isLeft
	if !isLeft {
		leftMode = true
		lastPos := -1
		for _, f := range frags {
			if r := f.Right; r != nil {
				if lastPos >= 0 && r.Pos != lastPos {
					leftMode = false
					break
				}
				lastPos = r.Pos
			}
		}
	}

	containedBy := make([]int, n)
	for i, f := range frags {
		part := get(f)
		if part == nil {
			continue
		}
		cnt := 1
		for j, g := range frags {
			whole := get(g)
			if i == j || whole == nil {
				continue
			}
			if !isLeft && gbam.RightRefPos(part) != gbam.RightRefPos(whole) {
				continue
			}
			if gbam.IsPartOf(part, whole, leftMode) {
				cnt++
			}
		}
		containedBy[i] = cnt
		if large && cnt >= n/2 {
			break
		}
	}
	best, bestNum := -1, -1
	for i, cnt := range containedBy {
		if cnt > bestNum {
			best, bestNum = i, cnt
			continue
		}
		if cnt == bestNum && best >= 0 && seqLen(get(frags[i])) < seqLen(get(frags[best])) {
			best = i
		}
	}
	if float64(bestNum) < float64(n)*minTemplateSupport && n != 1 {
		return nil, 0
	}
	out := get(frags[best])
	if out == nil {
		return nil, 0
	}
	outScore := score(frags[best])
	if isLeft {
		frags[best].Left = nil
	} else {
		frags[best].Right = nil
	}

	reads := []*sam.Record{out}
	scores := [][]byte{outScore}
	for j, f := range frags {
		r, s := get(f), score(f)
		if j == best || r == nil || s == nil {
			continue
		}
		if gbam.IsPartOf(out, r, leftMode) {
			reads = append(reads, r)
			scores = append(scores, s)
		}
	}
	return out, c.makeConsensus(reads, scores, leftMode)
}

func seqLen(r *sam.Record) int {
	if r == nil {
		return 0
	}
	return r.Seq.Length
}

// lowComplexity reports whether a large group looks like the product of
// aligning low complexity sequence: many distinct CIGARs, and a
// representative read whose adjacent bases rarely differ.
func (c *caller) lowComplexity(frags []*Fragment, get func(*Fragment) *sam.Record) bool {
	cigars := map[string]bool{}
	var first *sam.Record
	for _, f := range frags {
		if r := get(f); r != nil {
			cigars[r.Cigar.String()] = true
			if first == nil {
				first = r
			}
		}
	}
	if first == nil || float64(len(cigars)) <= float64(len(frags))*c.opts.LowComplexityCigarRatio {
		return false
	}
	seq := first.Seq.Expand()
	diffNeighbor := 0
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] != seq[i+1] {
			diffNeighbor++
		}
	}
	if float64(diffNeighbor) >= float64(len(seq))*c.opts.LowComplexityNeighborRatio {
		return false
	}
	if c.opts.Debug {
		log.Printf("skipping %d low complexity reads like: %s", len(frags), seq)
	}
	return true
}

// makeConsensus votes, position by position, for the base of reads[0] (the
// template) among reads, rewriting its sequence and qualities in place. It
// returns the number of bases changed. If the consensus moves away from the
// reference by more than maxMismatchIncrease bases the template is restored.
func (c *caller) makeConsensus(reads []*sam.Record, scores [][]byte, leftMode bool) int {
	opts := c.opts
	out := reads[0]
	seqBak := gbam.CopySeq(out.Seq)
	qualBak := append([]byte(nil), out.Qual...)

	lenDiff := make([]int, len(reads))
	for r, read := range reads {
		d := read.Seq.Length - out.Seq.Length
		// Some aligners leave the end of a longer read unaligned.
		if d != 0 && read.Pos == out.Pos && gbam.IsPartOf(out, read, true) {
			d = 0
		}
		lenDiff[r] = d
	}

	n := out.Seq.Length
	if len(out.Cigar) == 0 {
		for _, read := range reads {
			if read.Seq.Length < n {
				n = read.Seq.Length
			}
		}
	}

	var refBases []byte
	if out.TempLen != 0 && c.ref != nil {
		if b, ok := c.ref.Bases(out.Ref.ID(), out.Pos, gbam.RefLen(out)); ok {
			refBases = b
		} else if opts.Debug {
			log.Printf("no reference for %s:%d", out.Ref.Name(), out.Pos)
		}
	}

	// visit calls fn for the base and quality of every read at position i of
	// the template.
	visit := func(i int, fn func(base byte, qual, score int)) {
		for r, read := range reads {
			rp := i
			if !leftMode {
				rp = i + lenDiff[r]
			}
			if rp < 0 || rp >= read.Seq.Length || rp >= len(scores[r]) {
				continue
			}
			fn(gbam.BaseAt(read.Seq, rp), int(qualAt(read, rp)), int(scores[r][rp]))
		}
	}

	diff, mismatchInc := 0, 0
	for i := 0; i < n; i++ {
		var counts, baseScores, quals, topQuals [16]int
		totalScore := 0
		visit(i, func(b byte, q, s int) {
			counts[b]++
			baseScores[b] += s
			totalScore += s
			quals[b] += q
			if q > topQuals[b] {
				topQuals[b] = q
			}
		})
		topBase, topScore := byte(0), math.MinInt32
		for b := byte(0); b < 16; b++ {
			if baseScores[b] > topScore || (baseScores[b] == topScore && quals[b] > quals[topBase]) {
				topBase, topScore = b, baseScores[b]
			}
		}
		secBase, secScore := byte(0), math.MinInt32
		for b := byte(0); b < 16; b++ {
			if b == topBase {
				continue
			}
			if baseScores[b] > secScore || (baseScores[b] == secScore && quals[b] > quals[secBase]) {
				secBase, secScore = b, baseScores[b]
			}
		}
		topNum, topQual, secNum := counts[topBase], topQuals[topBase], counts[secBase]

		needRef := false
		if secNum == 0 {
			if topScore >= opts.BaseScoreReq && topQual >= opts.ModerateQuality {
				setQual(out, i, topQual)
				continue
			}
			needRef = true
		}
		refBase := byte(0)
		if refBases != nil {
			if rp := gbam.RefOffset(out, i); rp >= 0 && rp < len(refBases) && gbam.IsACGT(refBases[rp]) {
				refBase = refBases[rp]
			}
		}
		switch {
		case secNum == 1 && quals[secBase] <= opts.LowQuality:
			if topNum < 2 && topQual < opts.HighQuality {
				needRef = true
			}
		case secNum == 1:
			if topNum < 3 || topQual < opts.HighQuality {
				needRef = true
			}
		case secNum > 1:
			if float64(topScore) < opts.ScorePercentReq*float64(totalScore) || topQual < opts.ModerateQuality {
				needRef = true
			}
		}
		if topScore < opts.ScoreLowQualityMatch || topQual <= opts.LowQuality {
			needRef = true
		}

		if needRef && refBase != 0 {
			refQual := 0
			visit(i, func(b byte, q, _ int) {
				if b != refBase {
					return
				}
				if q > refQual {
					refQual = q
				}
				if q >= opts.HighQuality {
					topBase = refBase
				}
			})
			if topQual < opts.ModerateQuality {
				topBase = refBase
			}
			// Without a supporting read the reference base gets quality 0.
			if topBase == refBase {
				topQual = refQual
			}
		}

		if outBase := gbam.BaseAt(out.Seq, i); outBase != topBase {
			gbam.SetBaseAt(out.Seq, i, topBase)
			diff++
			if refBase != 0 {
				if outBase == refBase {
					mismatchInc++
				} else if topBase == refBase {
					mismatchInc--
				}
			}
		}
		setQual(out, i, topQual)
	}

	if mismatchInc > maxMismatchIncrease {
		if opts.Debug {
			log.Printf("%s %s:%d: consensus adds %d mismatches to the reference, keeping the template: %s",
				out.Name, out.Ref.Name(), out.Pos, mismatchInc, out.Seq.Expand())
		}
		out.Seq = seqBak
		out.Qual = qualBak
		return 0
	}
	if mismatchInc != 0 {
		gbam.AdjustIntAux(out, editDistanceTag, mismatchInc)
	}
	return diff
}

// duplexMerge reconciles the two strands of a duplex in place and returns
// the number of disagreeing bases, length differences included.
func duplexMerge(p1, p2 *Fragment) int {
	diff := 0
	if p1.Left != nil && p2.Left != nil {
		diff += duplexMergeRecords(p1.Left, p2.Left)
	}
	if p1.Right != nil && p2.Right != nil {
		diff += duplexMergeRecords(p1.Right, p2.Right)
	}
	return diff
}

// duplexMergeRecords masks every base where a and b disagree as N with
// quality 0 in both.
func duplexMergeRecords(a, b *sam.Record) int {
	n, diff := a.Seq.Length, b.Seq.Length-a.Seq.Length
	if diff < 0 {
		n, diff = b.Seq.Length, -diff
	}
	for i := 0; i < n; i++ {
		if gbam.BaseAt(a.Seq, i) == gbam.BaseAt(b.Seq, i) {
			continue
		}
		diff++
		gbam.SetBaseAt(a.Seq, i, gbam.NibbleN)
		gbam.SetBaseAt(b.Seq, i, gbam.NibbleN)
		setQual(a, i, 0)
		setQual(b, i, 0)
	}
	return diff
}
