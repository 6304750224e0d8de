//go:build !windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txt2cwb/pkg/contract"
)

func TestMapPathInvalidUnix(t *testing.T) {
	flat := false
	w, err := New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	require.NoError(t, err)
	for _, id := range []string{"/abs", "..", "."} {
		_, err := w.mapPath(contract.ArtifactID(id))
		assert.Equal(t, contract.ErrPathInvalid, err, id)
	}
}
