// Package reference serves reference genome bases to the consensus caller,
// indexed by the reference IDs of a BAM header.
package reference

import (
	"context"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/gencore/encoding/fasta"
	"github.com/grailbio/hts/sam"
)

// Reference is a read-only view of a FASTA file keyed by BAM reference ID.
// The bases of the most recently used contig are kept as 4-bit codes
// (A=1, C=2, G=4, T=8, N=15, one per byte). Thread safe.
type Reference struct {
	fa    fasta.Fasta
	names []string // indexed by reference ID

	mu      sync.Mutex
	curID   int
	cur     []byte
	missing map[int]bool // contigs reported as unavailable
	closers []file.File
}

// New creates a Reference that maps the references of a BAM header to the
// sequences of fa by name.
func New(fa fasta.Fasta, refs []*sam.Reference) *Reference {
	r := &Reference{fa: fa, curID: -1, missing: map[int]bool{}}
	for _, ref := range refs {
		for len(r.names) <= ref.ID() {
			r.names = append(r.names, "")
		}
		r.names[ref.ID()] = ref.Name()
	}
	return r
}

// Load opens the FASTA file at path. If path.fai exists the sequences are
// read on demand, otherwise the whole file, optionally compressed, is loaded
// into memory.
func Load(ctx context.Context, path string, refs []*sam.Reference) (*Reference, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open reference", path)
	}
	if idx, err := file.Open(ctx, path+".fai"); err == nil {
		fa, err := fasta.NewIndexed(in.Reader(ctx), idx.Reader(ctx))
		if e := idx.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(err, "read reference index", path+".fai")
		}
		log.Printf("%s: using index %s.fai", path, path)
		r := New(fa, refs)
		r.closers = append(r.closers, in)
		return r, nil
	}
	rc, _ := compress.NewReader(in.Reader(ctx))
	fa, err := fasta.New(rc)
	e := errors.Once{}
	e.Set(err)
	e.Set(rc.Close())
	e.Set(in.Close(ctx))
	if err := e.Err(); err != nil {
		return nil, errors.E(err, "read reference", path)
	}
	log.Printf("%s: loaded %d sequences", path, len(fa.SeqNames()))
	return New(fa, refs), nil
}

// Close releases the files held by an indexed reference.
func (r *Reference) Close(ctx context.Context) error {
	e := errors.Once{}
	for _, f := range r.closers {
		e.Set(f.Close(ctx))
	}
	r.closers = nil
	return e.Err()
}

// Bases returns the 4-bit codes of the reference interval [start,
// start+length) on contig refID. It returns false if the contig is unknown to
// the FASTA or the interval runs past its end; such a contig is logged once
// and reported as unavailable from then on. The returned slice must not be
// modified.
func (r *Reference) Bases(refID, start, length int) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[refID] {
		return nil, false
	}
	if refID != r.curID {
		if !r.loadLocked(refID) {
			r.missing[refID] = true
			return nil, false
		}
	}
	if start < 0 || length < 0 || start+length > len(r.cur) {
		log.Printf("reference %s (length %d) is shorter than the requested interval [%d, %d); reference is unavailable for this contig",
			r.names[refID], len(r.cur), start, start+length)
		r.missing[refID] = true
		return nil, false
	}
	return r.cur[start : start+length], true
}

func (r *Reference) loadLocked(refID int) bool {
	if refID < 0 || refID >= len(r.names) || r.names[refID] == "" {
		log.Printf("reference ID %d is not in the BAM header; reference is unavailable for this contig", refID)
		return false
	}
	name := r.names[refID]
	n, err := r.fa.Len(name)
	if err == nil && n == 0 {
		err = errors.E(errors.NotExist, "empty sequence")
	}
	var seq string
	if err == nil {
		seq, err = r.fa.Get(name, 0, n)
	}
	if err != nil {
		log.Printf("reference %s: %v; reference is unavailable for this contig", name, err)
		return false
	}
	if cap(r.cur) < len(seq) {
		r.cur = make([]byte, len(seq))
	}
	r.cur = r.cur[:len(seq)]
	for i := 0; i < len(seq); i++ {
		r.cur[i] = gbam.BaseToNibble(seq[i])
	}
	r.curID = refID
	log.Debug.Printf("reference %s: loaded %d bases", name, len(seq))
	return true
}
