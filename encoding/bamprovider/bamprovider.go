package bamprovider

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM and SAM files. The path may be an
// S3 URL, in which case the data will be read from S3, or "-" for the
// standard input. Otherwise the data will be read from the local filesystem.
//
// The standard input can be scanned only once.
type BAMProvider struct {
	// Path of the file. Must be nonempty.
	Path string
	// Type of the file. Unknown is read as BAM.
	Type FileType

	mu      sync.Mutex
	header  *sam.Header
	pending *stream // opened by GetHeader, handed to the first iterator
	nOpened int
	err     errors.Once
}

// stream is one open pass over the file.
type stream struct {
	ctx    context.Context
	path   string
	in     file.File // nil for stdin
	rc     io.ReadCloser
	bamr   *bam.Reader
	samr   *sam.Reader
	header *sam.Header
}

func (b *BAMProvider) open() (*stream, error) {
	ctx := vcontext.Background()
	s := &stream{ctx: ctx, path: b.Path}
	var r io.Reader
	if b.Path == "-" {
		r = os.Stdin
	} else {
		in, err := file.Open(ctx, b.Path)
		if err != nil {
			return nil, errors.E(err, "open", b.Path)
		}
		s.in = in
		r = in.Reader(ctx)
	}
	var err error
	if b.Type == SAM {
		rc, _ := compress.NewReader(r)
		s.rc = rc
		if s.samr, err = sam.NewReader(rc); err == nil {
			s.header = s.samr.Header()
		}
	} else {
		if s.bamr, err = bam.NewReader(r, 1); err == nil {
			s.header = s.bamr.Header()
		}
	}
	if err != nil {
		s.close() // nolint: errcheck
		return nil, errors.E(err, "read header", b.Path)
	}
	vlog.VI(1).Infof("%v: opened, %d references", b.Path, len(s.header.Refs()))
	return s, nil
}

func (s *stream) read() (*sam.Record, error) {
	if s.samr != nil {
		return s.samr.Read()
	}
	return s.bamr.Read()
}

func (s *stream) close() error {
	e := errors.Once{}
	if s.bamr != nil {
		e.Set(s.bamr.Close())
	}
	if s.rc != nil {
		e.Set(s.rc.Close())
	}
	if s.in != nil {
		e.Set(s.in.Close(s.ctx))
	}
	return e.Err()
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}
	s, err := b.open()
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	b.header = s.header
	b.pending = s
	return b.header, nil
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator() Iterator {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.pending
	b.pending = nil
	if s == nil {
		if b.Path == "-" && b.nOpened > 0 {
			return NewErrorIterator(errors.E(errors.Invalid, "the standard input can be read only once"))
		}
		var err error
		if s, err = b.open(); err != nil {
			b.err.Set(err)
			return NewErrorIterator(err)
		}
		if b.header == nil {
			b.header = s.header
		}
	}
	b.nOpened++
	return &bamIterator{provider: b, s: s}
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.err.Set(b.pending.close())
		b.pending = nil
	}
	return b.err.Err()
}

type bamIterator struct {
	provider *BAMProvider
	s        *stream
	rec      *sam.Record
	err      error
	done     bool
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if i.err != nil || i.done {
		return false
	}
	rec, err := i.s.read()
	if err == io.EOF {
		i.done = true
		return false
	}
	if err != nil {
		i.err = errors.E(err, "read", i.s.path)
		return false
	}
	i.rec = rec
	return true
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.rec
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	if err := i.s.close(); err != nil && i.err == nil {
		i.err = err
	}
	i.provider.err.Set(i.err)
	return i.err
}
