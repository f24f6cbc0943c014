package bam

import (
	"github.com/grailbio/hts/sam"
)

// 4-bit base codes used by the BAM SEQ field.
const (
	NibbleA = byte(1)
	NibbleC = byte(2)
	NibbleG = byte(4)
	NibbleT = byte(8)
	NibbleN = byte(15)
)

var (
	nibbleToBase = [16]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}
	baseToNibble [256]byte
)

func init() {
	for i := range baseToNibble {
		baseToNibble[i] = NibbleN
	}
	for _, b := range []byte("=ACMGRSVTWYHKDBN") {
		n := byte(0)
		for i, c := range nibbleToBase {
			if c == b {
				n = byte(i)
			}
		}
		baseToNibble[b] = n
		baseToNibble[b|0x20] = n // lower case
	}
	baseToNibble['='] = 0
}

// BaseToNibble converts an ASCII base to its 4-bit code. Unknown characters
// map to N.
func BaseToNibble(b byte) byte { return baseToNibble[b] }

// NibbleToBase converts a 4-bit base code to ASCII.
func NibbleToBase(n byte) byte { return nibbleToBase[n&0xf] }

// IsACGT returns true if n is the code of one of the four unambiguous bases.
func IsACGT(n byte) bool {
	return n == NibbleA || n == NibbleC || n == NibbleG || n == NibbleT
}

// BaseAt returns the 4-bit code of the i'th base of seq.
func BaseAt(seq sam.Seq, i int) byte {
	d := byte(seq.Seq[i>>1])
	if i&1 == 0 {
		return d >> 4
	}
	return d & 0xf
}

// SetBaseAt overwrites the i'th base of seq with the given 4-bit code. seq
// shares its storage with the record it came from.
func SetBaseAt(seq sam.Seq, i int, n byte) {
	p := &seq.Seq[i>>1]
	if i&1 == 0 {
		*p = sam.Doublet(byte(*p)&0x0f | (n&0xf)<<4)
	} else {
		*p = sam.Doublet(byte(*p)&0xf0 | n&0xf)
	}
}

// CopySeq returns a deep copy of seq.
func CopySeq(seq sam.Seq) sam.Seq {
	return sam.Seq{Length: seq.Length, Seq: append([]sam.Doublet(nil), seq.Seq...)}
}

// IsPaired returns true if record is paired.
func IsPaired(record *sam.Record) bool {
	return (record.Flags & sam.Paired) != 0
}

// IsUnmapped returns true if record is unmapped.
func IsUnmapped(record *sam.Record) bool {
	return (record.Flags & sam.Unmapped) != 0
}

// IsReverse returns true if record maps to the reverse strand.
func IsReverse(record *sam.Record) bool {
	return (record.Flags & sam.Reverse) != 0
}

// IsSecondary returns true if record is a secondary alignment.
func IsSecondary(record *sam.Record) bool {
	return (record.Flags & sam.Secondary) != 0
}

// IsSupplementary returns true if record is a supplementary alignment.
func IsSupplementary(record *sam.Record) bool {
	return (record.Flags & sam.Supplementary) != 0
}

// IsPrimary returns true if record is neither secondary nor supplementary.
func IsPrimary(record *sam.Record) bool {
	return (record.Flags & (sam.Secondary | sam.Supplementary)) == 0
}

// HasNoMappedMate returns true if record is unpaired or has an unmapped mate.
func HasNoMappedMate(record *sam.Record) bool {
	return (record.Flags&sam.Paired) == 0 || (record.Flags&sam.MateUnmapped) != 0
}

// IsUnplaced returns true if record has no reference coordinate at all. Such
// records sort after every placed record.
func IsUnplaced(record *sam.Record) bool {
	return record.Ref.ID() < 0 || record.Pos < 0
}

// RefOffset returns the offset from record.Pos of the reference base aligned
// to query position readPos. It returns -1 if readPos falls in an insertion or
// a soft clip, or beyond the end of the alignment.
func RefOffset(record *sam.Record, readPos int) int {
	refOff, readOff := 0, 0
	for _, co := range record.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if readPos < readOff+n {
				return refOff + readPos - readOff
			}
			readOff += n
			refOff += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			if readPos < readOff+n {
				return -1
			}
			readOff += n
		case sam.CigarDeletion, sam.CigarSkipped:
			refOff += n
		}
	}
	return -1
}

// FirstMatch returns the query offset and length of the first M block of
// record. It returns (0, 0) if there is none.
func FirstMatch(record *sam.Record) (offset, length int) {
	for _, co := range record.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch:
			return offset, n
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarEqual, sam.CigarMismatch:
			offset += n
		}
	}
	return 0, 0
}

// RefLen returns the number of reference bases covered by record's CIGAR.
func RefLen(record *sam.Record) int {
	n := 0
	for _, co := range record.Cigar {
		n += co.Len() * co.Type().Consumes().Reference
	}
	return n
}

// RightRefPos returns the reference position just past the alignment, or -1
// if record is unplaced.
func RightRefPos(record *sam.Record) int {
	if IsUnplaced(record) {
		return -1
	}
	return record.Pos + RefLen(record)
}

// IsPartOf returns true if the CIGAR of part is a prefix (leftAnchored) or a
// suffix (!leftAnchored) of the CIGAR of whole. Operation types must match
// pairwise. Lengths must match too, except that the last compared operation
// of part may be shorter, or the second to last one when the last one is a
// hard clip.
func IsPartOf(part, whole *sam.Record, leftAnchored bool) bool {
	np, nw := len(part.Cigar), len(whole.Cigar)
	if np == 0 || np > nw {
		return false
	}
	at := func(c sam.Cigar, n, i int) sam.CigarOp {
		if leftAnchored {
			return c[i]
		}
		return c[n-1-i]
	}
	for i := 0; i < np; i++ {
		p, w := at(part.Cigar, np, i), at(whole.Cigar, nw, i)
		if p.Type() != w.Type() || p.Len() > w.Len() {
			return false
		}
		if p.Len() == w.Len() || i == np-1 {
			continue
		}
		if i == np-2 && at(part.Cigar, np, np-1).Type() == sam.CigarHardClipped {
			continue
		}
		return false
	}
	return true
}

// IntAux returns the value of an integer aux field of the record.
func IntAux(record *sam.Record, tag sam.Tag) (int, bool) {
	aux := record.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	}
	return 0, false
}

// AdjustIntAux adds delta to the integer aux field of the record, preserving
// the field's type. It returns false, leaving the record untouched, if the
// field is absent, not an integer, or the new value does not fit the type.
func AdjustIntAux(record *sam.Record, tag sam.Tag, delta int) bool {
	for i, aux := range record.AuxFields {
		if aux.Tag() != tag {
			continue
		}
		old, ok := IntAux(record, tag)
		if !ok {
			return false
		}
		v := old + delta
		var val interface{}
		switch aux.Type() {
		case 'c':
			if v < -128 || v > 127 {
				return false
			}
			val = int8(v)
		case 'C':
			if v < 0 || v > 0xff {
				return false
			}
			val = uint8(v)
		case 's':
			if v < -32768 || v > 32767 {
				return false
			}
			val = int16(v)
		case 'S':
			if v < 0 || v > 0xffff {
				return false
			}
			val = uint16(v)
		case 'i':
			if int64(v) < -(1<<31) || int64(v) > 1<<31-1 {
				return false
			}
			val = int32(v)
		case 'I':
			if v < 0 || int64(v) > 1<<32-1 {
				return false
			}
			val = uint32(v)
		default:
			return false
		}
		newAux, err := sam.NewAux(tag, val)
		if err != nil {
			return false
		}
		record.AuxFields[i] = newAux
		return true
	}
	return false
}
