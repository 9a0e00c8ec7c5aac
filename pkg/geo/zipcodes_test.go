package geo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `zipcode,lat,lng
10249,52.5235,13.4497
60487,50.1233,8.6345
broken,x,y
`

func TestZipCodesFromReader(t *testing.T) {
	z, err := NewZipCodesFromReader(strings.NewReader(sample))
	require.NoError(t, err)

	c, ok := z.Lookup("10249")
	require.True(t, ok)
	assert.InDelta(t, 52.5235, c.Latitude, 1e-9)
	assert.InDelta(t, 13.4497, c.Longitude, 1e-9)

	assert.True(t, z.Valid("60487"))
	assert.False(t, z.Valid("99999"))
	assert.False(t, z.Valid("broken"))
	assert.Equal(t, 2, z.Len())
}

func TestZipCodesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zip.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	z := NewZipCodes(path)
	assert.True(t, z.Valid("10249"))
	assert.Equal(t, 2, z.Len())
}

func TestZipCodesMissingFile(t *testing.T) {
	z := NewZipCodes(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, 0, z.Len())
	_, ok := z.Lookup("10249")
	assert.False(t, ok)
}
