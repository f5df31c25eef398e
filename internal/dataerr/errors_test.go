package dataerr

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
		integrity   bool
		config      bool
	}{
		{"nil", nil, false, false, false},
		{"plain", errors.New("boom"), false, false, false},
		{"unavailable", NewUnavailable("facility: load", "48", fs.ErrNotExist), true, false, false},
		{"integrity", Integrityf("results: load coverage", "48/arts", "dropped %d rows", 3), false, true, false},
		{"configuration", NewConfiguration("config: resolve", "paths.data", nil), false, false, true},
		{"wrapped by eris", eris.Wrap(NewIntegrity("tiger: index", "", errors.New("dup")), "explorer: compose"), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unavailable, IsUnavailable(tt.err))
			assert.Equal(t, tt.integrity, IsIntegrity(tt.err))
			assert.Equal(t, tt.config, IsConfiguration(tt.err))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	err := NewUnavailable("facility: open", "HS_gdf_meters_clipped_48.geojson", fs.ErrNotExist)
	assert.Equal(t, "data unavailable: facility: open [HS_gdf_meters_clipped_48.geojson]: file does not exist", err.Error())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestExceedsThreshold(t *testing.T) {
	assert.False(t, ExceedsThreshold(1, 100, 0.01))
	assert.True(t, ExceedsThreshold(2, 100, 0.01))
	assert.False(t, ExceedsThreshold(0, 0, 0.01))
	assert.True(t, ExceedsThreshold(1, 1, 0.5))
}
