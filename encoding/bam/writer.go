package bam

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	htsbam "github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// Writer writes records to a BAM file, or to a SAM file when the path ends in
// ".sam". Path "-" selects BAM on the standard output. Paths may be anything
// github.com/grailbio/base/file understands, e.g. s3://bucket/key.
type Writer struct {
	ctx  context.Context
	path string
	out  file.File // nil for stdout
	bw   *htsbam.Writer
	sw   *sam.Writer
}

// NewWriter creates a Writer for path and writes the header.
func NewWriter(ctx context.Context, path string, header *sam.Header) (*Writer, error) {
	w := &Writer{ctx: ctx, path: path}
	var stream io.Writer
	if path == "-" || path == "" {
		stream = os.Stdout
	} else {
		out, err := file.Create(ctx, path)
		if err != nil {
			return nil, errors.E(err, "create", path)
		}
		w.out = out
		stream = out.Writer(ctx)
	}
	var err error
	if strings.HasSuffix(path, ".sam") {
		w.sw, err = sam.NewWriter(stream, header, sam.FlagDecimal)
	} else {
		w.bw, err = htsbam.NewWriter(stream, header, 1)
	}
	if err != nil {
		if w.out != nil {
			w.out.Close(ctx) // nolint: errcheck
		}
		return nil, errors.E(err, "write header", path)
	}
	log.Debug.Printf("%s: opened for writing", path)
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(r *sam.Record) error {
	var err error
	if w.sw != nil {
		err = w.sw.Write(r)
	} else {
		err = w.bw.Write(r)
	}
	if err != nil {
		return errors.E(err, "write", w.path, r.Name)
	}
	return nil
}

// Close flushes the output and closes the underlying file.
func (w *Writer) Close() error {
	e := errors.Once{}
	if w.bw != nil {
		e.Set(w.bw.Close())
	}
	if w.out != nil {
		e.Set(w.out.Close(w.ctx))
	}
	return e.Err()
}
