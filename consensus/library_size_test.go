package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateLibrarySize(t *testing.T) {
	tests := []struct {
		pairs     int64
		molecules int64
		expected  int64
	}{
		{1000000, 800000, 2154184},
		{171512300, 171512299, 14708234445116054},
	}
	for _, test := range tests {
		v, err := estimateLibrarySize(test.pairs, test.molecules)
		assert.NoError(t, err)
		assert.InEpsilon(t, test.expected, v, 0.0000000001)
	}

	_, err := estimateLibrarySize(10, 10)
	assert.Equal(t, errNoDuplicates, err)
	_, err = estimateLibrarySize(0, 0)
	assert.Equal(t, errNoDuplicates, err)
}
