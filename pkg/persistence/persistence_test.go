package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Pos   map[string]float64 `json:"pos"`
	Count int                `json:"count"`
}

func TestJSONFileStoreRoundTrip(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("engine", "acct1", "snapshots")

	in := snapshot{Pos: map[string]float64{"rb2401.SHFE": 2}, Count: 7}
	require.NoError(t, store.Save(in))

	var out snapshot
	require.NoError(t, store.Load(&out))
	assert.Equal(t, in, out)
}

func TestJSONFileStoreMissingKey(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	var out snapshot
	assert.ErrorIs(t, svc.NewStore("engine", "acct1", "nothing").Load(&out), ErrNotExists)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	svc, err := NewBadgerService(t.TempDir())
	require.NoError(t, err)
	defer svc.Close()

	store := svc.NewStore("engine", "acct1", "settings")
	in := snapshot{Pos: map[string]float64{"IF2406.CFFEX": -1}, Count: 3}
	require.NoError(t, store.Save(in))

	var out snapshot
	require.NoError(t, store.Load(&out))
	assert.Equal(t, in, out)

	var missing snapshot
	assert.ErrorIs(t, svc.NewStore("engine", "acct1", "absent").Load(&missing), ErrNotExists)
}
