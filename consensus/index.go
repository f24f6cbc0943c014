package consensus

import (
	"math"

	"github.com/biogo/store/llrb"
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/hts/sam"
)

// coord is a position in the coordinate sort order. Unplaced records sort
// after every placed one.
type coord struct {
	refID, pos int
}

var maxCoord = coord{math.MaxInt32, math.MaxInt32}

func coordOf(r *sam.Record) coord {
	if gbam.IsUnplaced(r) {
		return maxCoord
	}
	return coord{r.Ref.ID(), r.Pos}
}

func (c coord) less(o coord) bool {
	if c.refID != o.refID {
		return c.refID < o.refID
	}
	return c.pos < o.pos
}

// clusterKey identifies a group. For a properly paired fragment, refID and
// left are where the fragment starts and sig is where it ends, so that both
// mates compute the same key. For any other record, left is its own position
// and sig a negative number that encodes the mate's position.
type clusterKey struct {
	refID int
	left  int
	sig   int64
}

func (k clusterKey) compare(o clusterKey) int {
	switch {
	case k.refID != o.refID:
		return k.refID - o.refID
	case k.left != o.left:
		return k.left - o.left
	case k.sig < o.sig:
		return -1
	case k.sig > o.sig:
		return 1
	}
	return 0
}

// indexEntry is one open group in the index.
type indexEntry struct {
	key   clusterKey
	group *Group
	// closeAt is the last coordinate a record of the group can have.
	closeAt   coord
	threshold int
}

// Compare compares two entries by key for use in llrb.
func (e *indexEntry) Compare(c llrb.Comparable) int {
	return e.key.compare(c.(*indexEntry).key)
}

func isProperPair(r *sam.Record) bool {
	return gbam.IsPaired(r) && !gbam.HasNoMappedMate(r) && r.TempLen != 0 && r.MateRef.ID() == r.Ref.ID()
}

// clusterIndex holds the open groups of a coordinate-sorted stream of mapped
// records, ordered by key. A group is resolved once the stream has moved
// past every position its records can have.
type clusterIndex struct {
	c    *caller
	tree llrb.Tree
	out  *outputBuffer
}

func newClusterIndex(c *caller, out *outputBuffer) *clusterIndex {
	return &clusterIndex{c: c, out: out}
}

// Len returns the number of open groups.
func (x *clusterIndex) Len() int { return x.tree.Len() }

// add routes a mapped primary record carrying the given UMI to its group.
func (x *clusterIndex) add(r *sam.Record, u string) error {
	probe := &indexEntry{}
	refID := r.Ref.ID()
	if isProperPair(r) {
		left := r.Pos
		if r.TempLen < 0 {
			left = r.MatePos
		}
		right := left + absInt(r.TempLen) - 1
		probe.key = clusterKey{refID, left, int64(right)}
		probe.closeAt = coord{refID, right}
		probe.threshold = x.c.opts.ProperUmiDiffThreshold
	} else {
		sig := int64(-1)
		if !gbam.HasNoMappedMate(r) {
			sig = -2 - (int64(r.MateRef.ID())<<32 | int64(r.MatePos))
		}
		probe.key = clusterKey{refID, r.Pos, sig}
		probe.closeAt = coord{refID, r.Pos}
		probe.threshold = x.c.opts.ImproperUmiDiffThreshold
	}
	var e *indexEntry
	if c := x.tree.Get(probe); c != nil {
		e = c.(*indexEntry)
	} else {
		e = probe
		e.group = newGroup(e.key.sig < 0, countsMolecules(r))
		x.tree.Insert(e)
	}
	return e.group.addRecord(r, u)
}

// countsMolecules reports whether the group of a record that is not part of
// a proper pair counts molecules. Of the two sides of a pair only the one
// that comes first in coordinate order does.
func countsMolecules(r *sam.Record) bool {
	if isProperPair(r) || gbam.HasNoMappedMate(r) {
		return true
	}
	mateRef, ref := r.MateRef.ID(), r.Ref.ID()
	switch {
	case mateRef != ref:
		return mateRef > ref
	case r.MatePos != r.Pos:
		return r.MatePos > r.Pos
	}
	return r.Flags&sam.Read1 != 0
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// evict resolves every group that no record at or after cur can join. It
// returns the coordinate below which every record of the output buffer is
// final.
func (x *clusterIndex) evict(cur coord) (coord, error) {
	var done []*indexEntry
	x.tree.Do(func(c llrb.Comparable) bool {
		e := c.(*indexEntry)
		if e.key.refID > cur.refID || (e.key.refID == cur.refID && e.key.left >= cur.pos) {
			return true
		}
		if e.key.refID < cur.refID || e.closeAt.less(cur) {
			done = append(done, e)
		}
		return false
	})
	for _, e := range done {
		x.tree.Delete(e)
		if err := x.resolve(e); err != nil {
			return coord{}, err
		}
	}
	watermark := cur
	if c := x.tree.Min(); c != nil {
		e := c.(*indexEntry)
		if low := (coord{e.key.refID, e.key.left}); low.less(watermark) {
			watermark = low
		}
	}
	return watermark, nil
}

// finish resolves all open groups.
func (x *clusterIndex) finish() error {
	for x.tree.Len() > 0 {
		e := x.tree.Min().(*indexEntry)
		x.tree.DeleteMin()
		if err := x.resolve(e); err != nil {
			return err
		}
	}
	return nil
}

func (x *clusterIndex) resolve(e *indexEntry) error {
	frags, err := e.group.resolve(x.c, e.threshold)
	if err != nil {
		return err
	}
	for _, f := range frags {
		for _, r := range f.Records() {
			x.out.add(r)
		}
	}
	return nil
}
