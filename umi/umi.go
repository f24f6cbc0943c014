// Package umi handles the unique molecular identifiers that sequencing
// protocols embed in read names.
//
// A UMI is the last ':'-separated field of a query name, optionally preceded
// by a fixed prefix and a '_':
//
//   NB551106:8:H5Y57BGX2:1:13304:3538:1404:UMI_GAGCATAC
//
// Duplex protocols tag each read with two halves, "AAAC_TTTG"; the two
// strands of one molecule carry the halves in swapped order.
package umi

import "strings"

// Extract returns the UMI embedded in qname, or "" if there is none. The
// last ':'-separated field must start with prefix (optionally followed by
// '_'); the rest must be non-empty, consist of A, C, G, T, N and '_', and
// contain at most one '_'.
func Extract(qname, prefix string) string {
	sep := strings.LastIndexByte(qname, ':')
	if sep < 0 {
		return ""
	}
	field := qname[sep+1:]
	if !strings.HasPrefix(field, prefix) {
		return ""
	}
	u := field[len(prefix):]
	if strings.HasPrefix(u, "_") {
		u = u[1:]
	}
	if u == "" {
		return ""
	}
	underscores := 0
	for i := 0; i < len(u); i++ {
		switch u[i] {
		case 'A', 'C', 'G', 'T', 'N':
		case '_':
			underscores++
			if underscores > 1 {
				return ""
			}
		default:
			return ""
		}
	}
	return u
}

// Diff returns the number of differing positions over the common prefix of
// a and b, plus the difference of their lengths. It is not an edit distance:
// an indel near the start of a UMI counts as many mismatches.
func Diff(a, b string) int {
	n, d := len(a), len(b)-len(a)
	if d < 0 {
		n, d = len(b), -d
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// IsDuplex returns true if a and b are both two-part UMIs whose halves are
// swapped, i.e., they come from the two strands of the same molecule.
func IsDuplex(a, b string) bool {
	pa := strings.Split(a, "_")
	pb := strings.Split(b, "_")
	if len(pa) != 2 || len(pb) != 2 {
		return false
	}
	return pa[0] == pb[1] && pa[1] == pb[0]
}
