package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTileRequestParams_NormalizesCase(t *testing.T) {
	params, err := ParseTileRequestParams("us", "NewTab")
	require.NoError(t, err)
	assert.Equal(t, "US", params.Country)
	assert.Equal(t, "newtab", params.Placement)
}

func TestParseTileRequestParams_RejectsInvalidPlacement(t *testing.T) {
	_, err := ParseTileRequestParams("US", "sidebar")
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestParseTileRequestParams_AcceptsAllKnownPlacements(t *testing.T) {
	for _, placement := range []string{"urlbar", "newtab", "search"} {
		_, err := ParseTileRequestParams("US", placement)
		require.NoError(t, err)
	}
}
