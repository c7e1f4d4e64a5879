package checkout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() Snapshot {
	return Snapshot{
		BookingID:   "abc-123",
		ScreeningID: 7,
		Step:        StepConfirmingOrder,
		SeatIDs:     []uint64{11, 12},
		Combos:      []ComboLine{{ComboID: 3, Quantity: 2}},
		PointsUsed:  80,
		ExpiresAt:   time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	key := MirrorKey(7)

	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.Save(key, testSnapshot()))
	got, err := store.Load(key)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), *got)

	require.NoError(t, store.Clear(key))
	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	key := MirrorKey(7)

	first := testSnapshot()
	require.NoError(t, store.Save(key, first))

	second := first
	second.Step = StepSelectingCombos
	second.PointsUsed = 0
	require.NoError(t, store.Save(key, second))

	got, err := store.Load(key)
	require.NoError(t, err)
	assert.Equal(t, second, *got)
}

func TestFileStoreCorruptSnapshotTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	key := MirrorKey(7)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644))

	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRestartMarkerIsConsumedOnce(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	key := MirrorKey(7)

	assert.False(t, store.TakeRestartMarker(key))
	require.NoError(t, store.SetRestartMarker(key))
	assert.True(t, store.TakeRestartMarker(key))
	assert.False(t, store.TakeRestartMarker(key), "the marker is one-shot")
}

func TestClearRemovesMarkerToo(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	key := MirrorKey(7)
	require.NoError(t, store.Save(key, testSnapshot()))
	require.NoError(t, store.SetRestartMarker(key))

	require.NoError(t, store.Clear(key))
	assert.False(t, store.TakeRestartMarker(key))
}

func TestMemStoreBehavesLikeFileStore(t *testing.T) {
	store := NewMemStore()
	key := MirrorKey(9)

	_, err := store.Load(key)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.Save(key, testSnapshot()))
	got, err := store.Load(key)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), *got)

	require.NoError(t, store.SetRestartMarker(key))
	assert.True(t, store.TakeRestartMarker(key))
	assert.False(t, store.TakeRestartMarker(key))

	require.NoError(t, store.Clear(key))
	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
