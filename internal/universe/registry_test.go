package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRegistry_LoadsFile(t *testing.T) {
	path := writeRegistry(t, `
instruments:
  - symbol: mcx
    tags: [exchange]
  - symbol: RADICO
    lot_size: 1
  - symbol: HINDCOPPER
    enabled: false
`)
	r, err := NewRegistry(path, nil)
	require.NoError(t, err)

	assert.True(t, r.Allowed("MCX"))
	assert.True(t, r.Allowed(" radico "))
	assert.False(t, r.Allowed("HINDCOPPER"))
	assert.False(t, r.Allowed("RELIANCE"))
	assert.Equal(t, []string{"MCX", "RADICO"}, r.Symbols())

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "NSE", snap.Instruments[0].Exchange)
}

func TestRegistry_SchemaRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"symbol with a space": "instruments:\n  - symbol: \"bad symbol\"\n",
		"lot size below one":  "instruments:\n  - symbol: MCX\n    lot_size: 0\n",
		"unknown field":       "instruments:\n  - symbol: MCX\n    leverage: 5\n",
		"unknown exchange":    "instruments:\n  - symbol: MCX\n    exchange: NYSE\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(writeRegistry(t, body), nil)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(writeRegistry(t, "instruments:\n  - symbol: MCX\n  - symbol: MCX\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRegistry_FallbackWhenMissing(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"), []string{"mcx", "RADICO", "MCX"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MCX", "RADICO"}, r.Symbols())
	assert.Equal(t, "config", r.Snapshot().Source)

	_, err = NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	r := NewStatic([]string{"MCX"})
	assert.True(t, r.Allowed("mcx"))
	assert.False(t, r.Allowed("RADICO"))
}
