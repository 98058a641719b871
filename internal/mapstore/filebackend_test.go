package mapstore

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	b := NewFileBackend(path)

	// A missing file reads as empty.
	value, err := b.Load("k")
	require.NoError(t, err)
	assert.Nil(t, value)

	keys, err := b.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Binary values survive the JSON round trip.
	raw := []byte{0x00, 0xff, 0x10, '"'}
	require.NoError(t, b.Store("bin", raw))
	require.NoError(t, b.StoreAll(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))

	value, err = b.Load("bin")
	require.NoError(t, err)
	assert.Equal(t, raw, value)

	loaded, err := b.LoadAll([]string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, []byte("1"), loaded["a"])

	keys, err = b.Keys()
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b", "bin"}, keys)

	// A second backend over the same file sees the data.
	reopened := NewFileBackend(path)
	value, err = reopened.Load("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, b.Delete("a"))
	require.NoError(t, b.DeleteAll([]string{"b", "bin"}))
	keys, err = b.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
