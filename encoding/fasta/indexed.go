package fasta

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// faiEntry is one line of a samtools faidx index: "<name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
type faiEntry struct {
	length    uint64
	offset    uint64
	lineBase  uint64
	lineWidth uint64
}

type indexedFasta struct {
	seqs     map[string]faiEntry
	seqNames []string

	mu  sync.Mutex
	r   io.ReadSeeker
	buf []byte
}

// NewIndexed creates a Fasta that reads sequences on demand using a *.fai
// index, without loading the whole file into memory.
func NewIndexed(r io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &indexedFasta{seqs: make(map[string]faiEntry), r: r}
	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 5 {
			return nil, errors.Errorf("invalid index line: %q", scanner.Text())
		}
		var (
			ent  faiEntry
			vals [4]uint64
		)
		for i := range vals {
			v, err := strconv.ParseUint(cols[i+1], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid index line: %q", scanner.Text())
			}
			vals[i] = v
		}
		ent.length, ent.offset, ent.lineBase, ent.lineWidth = vals[0], vals[1], vals[2], vals[3]
		if ent.lineBase == 0 || ent.lineWidth < ent.lineBase {
			return nil, errors.Errorf("invalid line geometry in index line: %q", scanner.Text())
		}
		f.seqs[cols[0]] = ent
		f.seqNames = append(f.seqNames, cols[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	return f, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return ent.length, nil
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > ent.length {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, ent.length)
	}
	// Byte offsets of the first and one past the last base, newlines included.
	byteOff := func(pos uint64) uint64 {
		return ent.offset + pos/ent.lineBase*ent.lineWidth + pos%ent.lineBase
	}
	first, last := byteOff(start), byteOff(end-1)+1

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.r.Seek(int64(first), io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "seek %s:%d", seqName, start)
	}
	if n := int(last - first); cap(f.buf) < n {
		f.buf = make([]byte, n)
	} else {
		f.buf = f.buf[:n]
	}
	if _, err := io.ReadFull(f.r, f.buf); err != nil {
		return "", errors.Wrapf(err, "read %s:%d-%d (bad index?)", seqName, start, end)
	}
	seq := make([]byte, 0, end-start)
	for _, c := range f.buf {
		if c != '\n' && c != '\r' {
			seq = append(seq, c)
		}
	}
	if uint64(len(seq)) != end-start {
		return "", errors.Errorf("read %s:%d-%d: got %d bases (bad index?)", seqName, start, end, len(seq))
	}
	clean(seq)
	return string(seq), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}
