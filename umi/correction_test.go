package umi

import (
	"os"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapCorrector(t *testing.T) {
	known3 := "AAA\nCCC\nGGG\nTTT"
	known4 := "AAAA\nCCCC\nGGGG\nTTTT\n"

	tests := []struct {
		knownUMIs   string
		umi         string
		expected    string
		edits       int
		correctable bool
	}{
		{known3, "AAA", "AAA", 0, false},
		{known3, "TAA", "AAA", 1, true},
		{known3, "ATA", "AAA", 1, true},
		{known3, "aat", "AAA", 1, true},
		{known3, "NAA", "AAA", 1, true},

		{known4, "AACC", "AACC", -1, false}, // Could be AAAA or CCCC
		{known4, "AANN", "AAAA", 2, true},
		{known4, "ANNN", "AAAA", 3, true},
		{known4, "NNNN", "NNNN", -1, false},
	}

	for _, test := range tests {
		c, err := NewSnapCorrector([]byte(test.knownUMIs))
		require.NoError(t, err)
		for i := 0; i < 2; i++ { // the second lookup is served from the cache
			correctedUMI, edits, corrected := c.CorrectUMI(test.umi)
			assert.Equal(t, test.expected, correctedUMI, "'%s' should have corrected to '%s'", test.umi, test.expected)
			assert.Equal(t, test.edits, edits, "'%s' should have corrected to '%s' with %d edits", test.umi, test.expected, test.edits)
			assert.Equal(t, test.correctable, corrected, "'%s' should have corrected %v", test.umi, test.correctable)
		}
	}
}

func TestSnapCorrectorDuplex(t *testing.T) {
	c, err := NewSnapCorrector([]byte("AAAA\nCCCC\nGGGG\nTTTT"))
	require.NoError(t, err)
	assert.Equal(t, "AAAA_CCCC", c.Correct("AAAT_CCCC"))
	assert.Equal(t, "AAAA_CCCC", c.Correct("AANA_CCGC"))
	assert.Equal(t, "AACC_GGGG", c.Correct("AACC_GGGT"))
	assert.Equal(t, "TTTT", c.Correct("TTTA"))
	assert.Equal(t, "", c.Correct(""))
}

func TestBadKnownUMIs(t *testing.T) {
	for _, known := range []string{"", "AAA\nCC", "AXA"} {
		_, err := NewSnapCorrector([]byte(known))
		assert.Error(t, err, "%q", known)
	}
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
