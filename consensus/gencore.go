package consensus

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/gencore/encoding/bamprovider"
	"github.com/grailbio/gencore/interval"
	"github.com/grailbio/gencore/reference"
	"github.com/grailbio/gencore/umi"
	"github.com/grailbio/hts/sam"
)

// Sink receives the output records in coordinate order.
type Sink interface {
	Write(r *sam.Record) error
}

// Gencore calls consensus reads over a coordinate-sorted record stream.
// Records are fed one by one with Ingest; Finish flushes what remains.
type Gencore struct {
	opts      *Opts
	sink      Sink
	corrector *umi.SnapCorrector

	c     *caller
	index *clusterIndex
	out   *outputBuffer

	last    coord
	n       int
	stopped bool
}

// New creates a Gencore that writes its output to sink. ref may be nil.
func New(opts *Opts, ref Reference, sink Sink) (*Gencore, error) {
	if opts.EvictInterval <= 0 {
		return nil, errors.E(errors.Invalid, "evict interval must be positive, got", opts.EvictInterval)
	}
	g := &Gencore{
		opts: opts,
		sink: sink,
		c: &caller{
			opts: opts,
			ref:  ref,
			pre:  &Stats{targets: opts.Targets},
			post: &Stats{targets: opts.Targets},
		},
	}
	if len(opts.KnownUmis) > 0 {
		var err error
		if g.corrector, err = umi.NewSnapCorrector(opts.KnownUmis); err != nil {
			return nil, err
		}
	}
	g.out = newOutputBuffer(g.write)
	g.index = newClusterIndex(g.c, g.out)
	return g, nil
}

// PreStats returns the statistics of the input.
func (g *Gencore) PreStats() *Stats { return g.c.pre }

// PostStats returns the statistics of the output.
func (g *Gencore) PostStats() *Stats { return g.c.post }

func (g *Gencore) write(r *sam.Record) error {
	g.c.post.addRead(r)
	return g.sink.Write(r)
}

// Ingest feeds the next input record. Records must arrive in coordinate
// order. Gencore takes ownership of r.
func (g *Gencore) Ingest(r *sam.Record) error {
	if g.stopped {
		return nil
	}
	cur := coordOf(r)
	if cur.less(g.last) {
		return errors.E(errors.Integrity, "input is not sorted by coordinate",
			fmt.Sprintf("%s:%d", r.Ref.Name(), r.Pos+1))
	}
	if g.opts.MaxContig > 0 && cur.refID >= g.opts.MaxContig && !gbam.IsUnplaced(r) {
		log.Printf("reached contig %s, ignoring the rest of the input", r.Ref.Name())
		g.stopped = true
		return nil
	}
	if cur.refID != g.last.refID {
		if err := g.evict(cur); err != nil {
			return err
		}
	}
	g.last = cur
	if !gbam.IsPrimary(r) {
		g.c.pre.SecondarySupplementary++
		return nil
	}
	g.c.pre.addRead(r)
	g.n++
	if gbam.IsUnmapped(r) || gbam.IsUnplaced(r) {
		g.out.add(r)
	} else if err := g.index.add(r, g.umi(r)); err != nil {
		return err
	}
	if g.n%g.opts.EvictInterval == 0 {
		return g.evict(cur)
	}
	return nil
}

// evict resolves the groups that records at or after cur cannot join and
// writes out the records that are final.
func (g *Gencore) evict(cur coord) error {
	watermark, err := g.index.evict(cur)
	if err != nil {
		return err
	}
	if g.opts.Debug {
		log.Debug.Printf("%d:%d: %d open groups, %d records buffered",
			cur.refID, cur.pos, g.index.Len(), g.out.Len())
	}
	return g.out.flush(watermark)
}

func (g *Gencore) umi(r *sam.Record) string {
	u := umi.Extract(r.Name, g.opts.UmiPrefix)
	if u != "" && g.corrector != nil {
		u = g.corrector.Correct(u)
	}
	return u
}

// Finish resolves every open group and writes all pending records.
func (g *Gencore) Finish() error {
	if err := g.index.finish(); err != nil {
		return err
	}
	return g.out.flushAll()
}

// Run reads every record of provider and writes the consensus to sink.
func Run(provider bamprovider.Provider, opts *Opts, ref Reference, sink Sink) (*Gencore, error) {
	g, err := New(opts, ref, sink)
	if err != nil {
		return nil, err
	}
	iter := provider.NewIterator()
	for iter.Scan() {
		if err := g.Ingest(iter.Record()); err != nil {
			iter.Close() // nolint: errcheck
			return nil, err
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if err := g.Finish(); err != nil {
		return nil, err
	}
	return g, nil
}

// SetupAndRun validates opts, loads the known UMIs and the reference, runs
// consensus calling from provider to opts.Output and writes the reports.
func SetupAndRun(ctx context.Context, provider bamprovider.Provider, opts *Opts) (err error) {
	if len(opts.UmiFile) > 0 {
		umiReader, err := file.Open(ctx, opts.UmiFile)
		if err != nil {
			log.Debug.Printf("could not open umi file %s: %v", opts.UmiFile, err)
			return err
		}
		defer umiReader.Close(ctx) // nolint: errcheck
		if opts.KnownUmis, err = ioutil.ReadAll(umiReader.Reader(ctx)); err != nil {
			log.Debug.Printf("could not read umi file %s: %v", opts.UmiFile, err)
			return err
		}
		if len(opts.KnownUmis) == 0 {
			return errors.E(errors.Invalid, "UMI list is empty:", opts.UmiFile)
		}
	}
	if err := validate(opts); err != nil {
		return errors.E(errors.Invalid, err)
	}

	header, err := provider.GetHeader()
	if err != nil {
		return err
	}
	if opts.BedFile != "" {
		if opts.Targets, err = interval.NewBEDUnionFromPath(ctx, opts.BedFile, header); err != nil {
			return err
		}
	}
	var ref Reference
	if opts.RefFile != "" {
		r, err := reference.Load(ctx, opts.RefFile, header.Refs())
		if err != nil {
			return err
		}
		defer func() {
			if err2 := r.Close(ctx); err == nil && err2 != nil {
				err = err2
			}
		}()
		ref = r
	} else {
		log.Printf("no reference given, consensus calling will not use reference bases")
	}

	w, err := gbam.NewWriter(ctx, opts.Output, header)
	if err != nil {
		return err
	}
	g, err := Run(provider, opts, ref, w)
	if err2 := w.Close(); err == nil {
		err = err2
	}
	if err != nil {
		log.Debug.Printf("error calling consensus: %v", err)
		return err
	}

	g.PreStats().Print("before processing")
	g.PostStats().Print("after processing")
	if opts.MetricsFile != "" {
		if err := writeMetrics(ctx, opts.MetricsFile, g.PreStats(), g.PostStats()); err != nil {
			return err
		}
	}
	if opts.JSONFile != "" {
		if err := writeJSON(ctx, opts.JSONFile, g.PreStats(), g.PostStats()); err != nil {
			return err
		}
	}
	return nil
}
