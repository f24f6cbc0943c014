package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// PosType is BEDUnion's coordinate type.
type PosType int32

const posTypeMax = math.MaxInt32

// searchPosType returns the number of elements of a that are < x.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// BEDUnion is a set of disjoint intervals per reference. The 0-based start
// of interval #k of a reference is in element [2k] and its end in element
// [2k+1], and the intervals are stored in increasing order. A position is
// covered iff an odd number of endpoints are <= it.
type BEDUnion struct {
	nameMap map[string][]PosType
	// idMap is indexed by sam.Header reference ID. It is nil when the union
	// was loaded without a header.
	idMap [][]PosType
	bases int
}

// Bases returns the number of positions covered.
func (u *BEDUnion) Bases() int { return u.bases }

func (u *BEDUnion) byID(refID int) []PosType {
	if refID < 0 || refID >= len(u.idMap) {
		return nil
	}
	return u.idMap[refID]
}

// ContainsByID checks whether the 0-based position pos of the reference with
// the given sam.Header ID is covered.
func (u *BEDUnion) ContainsByID(refID int, pos PosType) bool {
	return searchPosType(u.byID(refID), pos+1)&1 == 1
}

// ContainsByName is ContainsByID for a reference given by name.
func (u *BEDUnion) ContainsByName(refName string, pos PosType) bool {
	return searchPosType(u.nameMap[refName], pos+1)&1 == 1
}

// OverlapByID returns the number of covered positions in [start, end) of the
// reference with the given sam.Header ID.
func (u *BEDUnion) OverlapByID(refID int, start, end PosType) int {
	ends := u.byID(refID)
	n := 0
	for k := searchPosType(ends, start+1) &^ 1; k < len(ends) && ends[k] < end; k += 2 {
		lo, hi := ends[k], ends[k+1]
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if hi > lo {
			n += int(hi - lo)
		}
	}
	return n
}

type bedInterval struct{ start, end PosType }

// merge sorts ivs and returns the endpoints of their union.
func merge(ivs []bedInterval) []PosType {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
	ends := make([]PosType, 0, 2*len(ivs))
	for _, iv := range ivs {
		if iv.end == iv.start {
			continue
		}
		if n := len(ends); n > 0 && iv.start <= ends[n-1] {
			if iv.end > ends[n-1] {
				ends[n-1] = iv.end
			}
			continue
		}
		ends = append(ends, iv.start, iv.end)
	}
	return ends
}

// NewBEDUnion loads the intervals of the first three columns of a BED file,
// merging touching and overlapping ones. Header, track and browser lines are
// skipped. When header is non-nil the union can be queried by reference ID;
// references absent from the header are ignored then.
func NewBEDUnion(reader io.Reader, header *sam.Header) (*BEDUnion, error) {
	byName := map[string][]bedInterval{}
	scanner := bufio.NewScanner(reader)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' || bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser")) {
			continue
		}
		tokens := bytes.Fields(line)
		if len(tokens) < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("BED line %d has fewer than 3 columns", lineIdx))
		}
		start, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("BED line %d", lineIdx))
		}
		end, err := strconv.Atoi(string(tokens[2]))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("BED line %d", lineIdx))
		}
		if start < 0 || end < start || end >= posTypeMax {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid interval [%d, %d) on BED line %d", start, end, lineIdx))
		}
		name := string(tokens[0])
		byName[name] = append(byName[name], bedInterval{PosType(start), PosType(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	u := &BEDUnion{nameMap: make(map[string][]PosType, len(byName))}
	for name, ivs := range byName {
		ends := merge(ivs)
		u.nameMap[name] = ends
		for k := 0; k < len(ends); k += 2 {
			u.bases += int(ends[k+1] - ends[k])
		}
	}
	if header != nil {
		refs := header.Refs()
		u.idMap = make([][]PosType, len(refs))
		for _, ref := range refs {
			u.idMap[ref.ID()] = u.nameMap[ref.Name()]
		}
	}
	log.Printf("BED loaded, %d base(s) covered.", u.bases)
	return u, nil
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader. Gzipped files are decompressed.
func NewBEDUnionFromPath(ctx context.Context, path string, header *sam.Header) (u *BEDUnion, err error) {
	infile, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "couldn't open BED file", path)
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		if reader, err = gzip.NewReader(reader); err != nil {
			return nil, errors.E(err, "couldn't decompress", path)
		}
	}
	return NewBEDUnion(reader, header)
}
