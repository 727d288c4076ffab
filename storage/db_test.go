package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("asset:1"), []byte("payload")))

	got, err := db.Get([]byte("asset:1"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	_, err = db.Get([]byte("asset:2"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, db.Delete([]byte("asset:1")))
	_, err = db.Get([]byte("asset:1"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	// Mutating the returned slice must not poison the stored copy either.
	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("holding:7"), []byte("600")))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("holding:7"))
	require.NoError(t, err)
	require.Equal(t, []byte("600"), got)

	_, err = db2.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}
