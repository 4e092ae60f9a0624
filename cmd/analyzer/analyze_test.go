package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

func TestParseFilterFlags(t *testing.T) {
	criteria, err := parseFilterFlags([]string{"category=Tools", " search = wid "})
	require.NoError(t, err)
	assert.Equal(t, "Tools", criteria.Category)
	assert.Equal(t, "wid", criteria.Search)

	criteria, err = parseFilterFlags(nil)
	require.NoError(t, err)
	assert.True(t, criteria.IsEmpty())

	_, err = parseFilterFlags([]string{"category"})
	assert.Error(t, err)

	_, err = parseFilterFlags([]string{"status=Broken"})
	assert.ErrorIs(t, err, analysis.ErrInvalidFilterCriteria)
}
