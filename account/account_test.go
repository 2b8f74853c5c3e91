package account

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAccountHasValidInstanceTag(t *testing.T) {
	acc, err := New()
	require.NoError(t, err)
	require.True(t, acc.InstanceTag.Valid())
	require.NotNil(t, acc.LongTerm)
	require.NotNil(t, acc.Forging)
}

func TestFileStoreRoundTrip(t *testing.T) {
	acc, err := New()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "account.key")
	store := NewFileStore(path)
	require.NoError(t, store.Save(acc))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, acc.InstanceTag, loaded.InstanceTag)
	require.Equal(t, acc.LongTerm.Public, loaded.LongTerm.Public)
	require.Equal(t, acc.Forging.Public, loaded.Forging.Public)
}

func TestFileStoreLoadMissingReturnsErrNoAccount(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.key"))
	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoAccount)
}
