// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam provides helpers that augment github.com/grailbio/hts/sam:
// access to the 4-bit packed sequence, CIGAR walks used when comparing
// alignments, in-place updates of integer aux fields, and a record Writer
// for BAM and SAM output.
package bam
