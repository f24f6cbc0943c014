// Package bamprovider provides a uniform way of scanning a coordinate-sorted
// BAM or SAM source.
//
// The Provider is an interface for reading a BAM or SAM file, local, on S3 or
// on the standard input. NewFakeProvider serves in-memory records for tests.
package bamprovider
