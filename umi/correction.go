package umi

import (
	"bufio"
	"bytes"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

type snapCorrectorEntry struct {
	knownUMI string
	edits    int
	ok       bool
}

// SnapCorrector implements "snap" correction of UMIs. A UMI U is snappable
// if there is a known UMI U1 that is closer to U than all other known UMIs,
// in terms of Levenshtein edit distance. Thread safe.
type SnapCorrector struct {
	knownUMIs []string
	k         int

	mu sync.Mutex
	// cache maps every UMI looked up so far to its snap result.
	cache map[string]snapCorrectorEntry
}

// NewSnapCorrector creates a new snap corrector. knownUMIs is a newline
// separated list of UMIs of equal length (the content of a UMI list file).
// Each UMI must consist of the characters ACGT.
func NewSnapCorrector(knownUMIs []byte) (*SnapCorrector, error) {
	scanner := bufio.NewScanner(bytes.NewReader(knownUMIs))
	c := &SnapCorrector{k: -1, cache: map[string]snapCorrectorEntry{}}
	for scanner.Scan() {
		u := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if u == "" {
			continue
		}
		if c.k < 0 {
			c.k = len(u)
		}
		if len(u) != c.k {
			return nil, errors.E(errors.Invalid, "umi", u, "has length", len(u), "other umis have length", c.k)
		}
		if strings.Trim(u, "ACGT") != "" {
			return nil, errors.E(errors.Invalid, "invalid base in umi", u)
		}
		c.knownUMIs = append(c.knownUMIs, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "read umi list")
	}
	if c.k < 0 {
		return nil, errors.E(errors.Invalid, "no umis in input")
	}
	log.Debug.Printf("snap corrector: %d known umis of length %d", len(c.knownUMIs), c.k)
	return c, nil
}

// CorrectUMI returns a corrected umi, number of edits to the corrected umi,
// and true if there is exactly one known UMI that is closest to the original
// umi with respect to Levenshtein edit distance and it differs from umi.
// Otherwise, it returns the original umi, the distance (or -1 if there is no
// unique closest UMI), and false.
func (c *SnapCorrector) CorrectUMI(umi string) (correctedUMI string, edits int, corrected bool) {
	umi = strings.ToUpper(umi)
	c.mu.Lock()
	entry, found := c.cache[umi]
	c.mu.Unlock()
	if !found {
		entry = c.snap(umi)
		c.mu.Lock()
		c.cache[umi] = entry
		c.mu.Unlock()
	}
	if !entry.ok {
		return umi, -1, false
	}
	return entry.knownUMI, entry.edits, entry.knownUMI != umi
}

func (c *SnapCorrector) snap(umi string) snapCorrectorEntry {
	best, bestCost, ties := "", -1, 0
	for _, known := range c.knownUMIs {
		cost := matchr.Levenshtein(umi, known)
		switch {
		case bestCost < 0 || cost < bestCost:
			best, bestCost, ties = known, cost, 1
		case cost == bestCost:
			ties++
		}
	}
	if ties != 1 {
		return snapCorrectorEntry{}
	}
	return snapCorrectorEntry{knownUMI: best, edits: bestCost, ok: true}
}

// Correct snaps each '_'-separated half of a UMI independently and returns
// the result. Halves that cannot be snapped are kept as they are.
func (c *SnapCorrector) Correct(umi string) string {
	if umi == "" {
		return umi
	}
	parts := strings.Split(umi, "_")
	changed := false
	for i, p := range parts {
		if fixed, _, ok := c.CorrectUMI(p); ok {
			parts[i] = fixed
			changed = true
		}
	}
	if !changed {
		return umi
	}
	return strings.Join(parts, "_")
}
