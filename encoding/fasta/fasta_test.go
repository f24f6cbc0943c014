package fasta_test

import (
	"strings"
	"testing"

	"github.com/grailbio/gencore/encoding/fasta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fastaData  = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"
	fastaIndex = "seq1\t12\t6\t5\t6\n" + "seq2\t8\t44\t4\t5\n"
)

func newFastas(t *testing.T, data, index string) map[string]fasta.Fasta {
	unindexed, err := fasta.New(strings.NewReader(data))
	require.NoError(t, err)
	indexed, err := fasta.NewIndexed(strings.NewReader(data), strings.NewReader(index))
	require.NoError(t, err)
	return map[string]fasta.Fasta{"unindexed": unindexed, "indexed": indexed}
}

func TestGet(t *testing.T) {
	tests := []struct {
		seq        string
		start, end uint64
		want       string
		wantErr    bool
	}{
		{"seq1", 1, 2, "C", false},
		{"seq1", 1, 6, "CGTAC", false},
		{"seq1", 0, 12, "ACGTACGTACGT", false},
		{"seq1", 10, 12, "GT", false},
		{"seq2", 0, 8, "ACGTACGT", false},
		{"seq2", 2, 5, "GTA", false},
		{"seq0", 0, 1, "", true},
		{"seq1", 10, 13, "", true},
		{"seq1", 4, 3, "", true},
	}
	for name, fa := range newFastas(t, fastaData, fastaIndex) {
		for _, tt := range tests {
			got, err := fa.Get(tt.seq, tt.start, tt.end)
			if tt.wantErr {
				assert.Error(t, err, "%s: %+v", name, tt)
				continue
			}
			assert.NoError(t, err, "%s: %+v", name, tt)
			assert.Equal(t, tt.want, got, "%s: %+v", name, tt)
		}
	}
}

func TestLength(t *testing.T) {
	for name, fa := range newFastas(t, fastaData, fastaIndex) {
		n, err := fa.Len("seq1")
		assert.NoError(t, err)
		assert.Equal(t, uint64(12), n, name)
		n, err = fa.Len("seq2")
		assert.NoError(t, err)
		assert.Equal(t, uint64(8), n, name)
		_, err = fa.Len("seq0")
		assert.Error(t, err, name)
	}
}

func TestSeqNames(t *testing.T) {
	for name, fa := range newFastas(t, fastaData, fastaIndex) {
		assert.Equal(t, []string{"seq1", "seq2"}, fa.SeqNames(), name)
	}
}

func TestCleaning(t *testing.T) {
	data := ">chr1\nacgtRY\r\nnNAC\n"
	index := "chr1\t10\t6\t6\t8\n"
	for name, fa := range newFastas(t, data, index) {
		got, err := fa.Get("chr1", 0, 10)
		require.NoError(t, err, name)
		assert.Equal(t, "ACGTNNNNAC", got, name)
	}
}

func TestMalformed(t *testing.T) {
	_, err := fasta.New(strings.NewReader("ACGT\n>chr1\nACGT\n"))
	assert.Error(t, err)
	_, err = fasta.New(strings.NewReader(">\nACGT\n"))
	assert.Error(t, err)
	_, err = fasta.NewIndexed(strings.NewReader(""), strings.NewReader("chr1\tx\t0\t4\t5\n"))
	assert.Error(t, err)
}
