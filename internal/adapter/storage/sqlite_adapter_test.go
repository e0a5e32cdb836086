package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteAdapter(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runStoreContract(t, store)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	seedProduct(t, store, "widget", "5.00", 3)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, 3, quantityOf(t, store, "widget"))
}
