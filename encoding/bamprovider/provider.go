package bamprovider

import (
	"strings"

	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// Provider gives access to the records of a coordinate-sorted BAM or SAM
// source. Thread safe.
type Provider interface {
	// GetHeader returns the header for the provided data. The callee must
	// not modify the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all the records, in file order.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records. Thread compatible.
type Iterator interface {
	// Scan returns whether there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred. An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// FileType represents the type of a BAM-like file.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// BAM file
	BAM
	// SAM file, possibly compressed.
	SAM
)

// GuessFileType returns the file type from the pathname. Paths ending in .sam
// or .sam.gz are SAM; everything else, including "-" for the standard input,
// is treated as BAM.
func GuessFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".bam"):
		return BAM
	case strings.HasSuffix(path, ".sam"), strings.HasSuffix(path, ".sam.gz"):
		return SAM
	}
	vlog.VI(1).Infof("%v: could not detect file type, assuming BAM.", path)
	return Unknown
}

// NewProvider creates a Provider object for "path". The file type is
// autodetected from the path.
func NewProvider(path string) Provider {
	return &BAMProvider{Path: path, Type: GuessFileType(path)}
}
