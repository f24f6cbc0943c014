package consensus

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// pendingRecord is a record waiting in the output buffer.
type pendingRecord struct {
	pos                coord
	mateRefID, matePos int
	tempLen            int
	// seq breaks ties in arrival order.
	seq uint64
	r   *sam.Record
}

// Compare orders records by coordinate, then by mate position, template
// length and arrival.
func (p *pendingRecord) Compare(c llrb.Comparable) int {
	o := c.(*pendingRecord)
	switch {
	case p.pos != o.pos:
		if p.pos.less(o.pos) {
			return -1
		}
		return 1
	case p.mateRefID != o.mateRefID:
		return p.mateRefID - o.mateRefID
	case p.matePos != o.matePos:
		return p.matePos - o.matePos
	case p.tempLen != o.tempLen:
		return p.tempLen - o.tempLen
	case p.seq < o.seq:
		return -1
	case p.seq > o.seq:
		return 1
	}
	return 0
}

// outputBuffer reorders records into coordinate order. Records are released
// only once no record below the watermark can arrive anymore.
type outputBuffer struct {
	tree  llrb.Tree
	seq   uint64
	write func(*sam.Record) error

	last   coord
	warned bool
}

func newOutputBuffer(write func(*sam.Record) error) *outputBuffer {
	return &outputBuffer{write: write}
}

// Len returns the number of records waiting.
func (b *outputBuffer) Len() int { return b.tree.Len() }

func (b *outputBuffer) add(r *sam.Record) {
	b.seq++
	b.tree.Insert(&pendingRecord{
		pos:       coordOf(r),
		mateRefID: r.MateRef.ID(),
		matePos:   r.MatePos,
		tempLen:   r.TempLen,
		seq:       b.seq,
		r:         r,
	})
}

// flush writes out every record strictly below watermark.
func (b *outputBuffer) flush(watermark coord) error {
	for b.tree.Len() > 0 {
		p := b.tree.Min().(*pendingRecord)
		if !p.pos.less(watermark) {
			return nil
		}
		b.tree.DeleteMin()
		if err := b.emit(p); err != nil {
			return err
		}
	}
	return nil
}

// flushAll writes out every record.
func (b *outputBuffer) flushAll() error {
	for b.tree.Len() > 0 {
		p := b.tree.Min().(*pendingRecord)
		b.tree.DeleteMin()
		if err := b.emit(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *outputBuffer) emit(p *pendingRecord) error {
	if p.pos.less(b.last) && !b.warned {
		log.Error.Printf("output is not sorted: %s at %d:%d written after %d:%d",
			p.r.Name, p.pos.refID, p.pos.pos, b.last.refID, b.last.pos)
		b.warned = true
	}
	b.last = p.pos
	return b.write(p.r)
}
