package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDimensions(t *testing.T) {
	w, h, err := parseDimensions("1654x2339")
	require.NoError(t, err)
	assert.Equal(t, 1654, w)
	assert.Equal(t, 2339, h)

	w, h, err = parseDimensions("4096X1200")
	require.NoError(t, err)
	assert.Equal(t, 4096, w)
	assert.Equal(t, 1200, h)
}

func TestParseDimensionsRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "1000", "x", "axb", "-5x100", "100x0", "100x-1"} {
		_, _, err := parseDimensions(input)
		assert.Error(t, err, "input %q", input)
	}
}
