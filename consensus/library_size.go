package consensus

/**
* MIT License
*
* Copyright (c) 2017 Broad Institute
*
* Permission is hereby granted, free of charge, to any person obtaining a copy
* of this software and associated documentation files (the "Software"), to deal
* in the Software without restriction, including without limitation the rights
* to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
* copies of the Software, and to permit persons to whom the Software is
* furnished to do so, subject to the following conditions:
*
* The above copyright notice and this permission notice shall be included in all
* copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
* IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
* FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
* AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
* LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
* OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
* SOFTWARE.
 */

import (
	"math"

	"github.com/grailbio/base/errors"
)

// errNoDuplicates is returned by estimateLibrarySize when every pair came
// from a distinct molecule.
var errNoDuplicates = errors.E("no duplicates")

// estimateLibrarySize estimates the number of distinct paired molecules in
// the library from the number of read pairs sequenced and the number of
// distinct molecules they came from, by solving the Lander-Waterman
// equation
//
//   C/X = 1 - exp(-N/X)
//
// for X, with N the pairs and C the molecules.
func estimateLibrarySize(pairs, molecules int64) (int64, error) {
	if pairs <= 0 || molecules >= pairs {
		return 0, errNoDuplicates
	}
	f := func(x, c, n float64) float64 {
		return c/x + math.Expm1(-n/x)
	}
	n, c := float64(pairs), float64(molecules)
	lo, hi := 1.0, 100.0
	if c <= 0 || f(lo*c, c, n) < 0 {
		return 0, errors.E(errors.Invalid, "invalid pair and molecule counts", pairs, molecules)
	}
	// When c and n are large and nearly equal, hi can overflow before f
	// turns negative.
	for f(hi*c, c, n) >= 0 {
		hi *= 10
		if math.IsInf(hi, 1) {
			return 0, errors.E(errors.Invalid, "library size diverges for", pairs, molecules)
		}
	}
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		u := f(mid*c, c, n)
		if u == 0 {
			break
		} else if u > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return int64(c * (lo + hi) / 2), nil
}
