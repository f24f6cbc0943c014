// Package fasta reads reference sequences from FASTA files. See
// http://www.htslib.org/doc/faidx.html. Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines. For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Sequence names are the stretch of characters excluding spaces immediately
// after '>'. Any text after a space is ignored. Sequences are returned in
// upper case, with every character other than A, C, G and T replaced by N.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

var cleanTable [256]byte

func init() {
	for i := range cleanTable {
		cleanTable[i] = 'N'
	}
	for _, c := range []byte("ACGT") {
		cleanTable[c] = c
		cleanTable[c|0x20] = c
	}
}

// clean rewrites seq in place into upper-case ACGTN.
func clean(seq []byte) {
	for i, c := range seq {
		seq[i] = cleanTable[c]
	}
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string)}
	br := bufio.NewReaderSize(r, 1<<20)
	var (
		seqName string
		seq     []byte
		started bool
	)
	flush := func() {
		if started {
			clean(seq)
			f.seqs[seqName] = string(seq)
			f.seqNames = append(f.seqNames, seqName)
		}
		seq = seq[:0]
	}
	for {
		line, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// Very long line: keep reading the rest of it.
			seq = append(seq, line...)
			continue
		}
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "couldn't read FASTA data")
		}
		line = trimEOL(line)
		if len(line) > 0 {
			if line[0] == '>' {
				flush()
				seqName = strings.Split(string(line[1:]), " ")[0]
				if seqName == "" {
					return nil, errors.Errorf("malformed FASTA file: empty sequence name")
				}
				started = true
			} else {
				if !started {
					return nil, errors.Errorf("malformed FASTA file: sequence data before the first name")
				}
				seq = append(seq, line...)
			}
		}
		if err == io.EOF {
			break
		}
	}
	flush()
	return f, nil
}

func trimEOL(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
