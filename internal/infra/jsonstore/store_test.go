package jsonstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, store.Initialize())
	return store
}

func TestStore_Initialize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	store := New(path)
	assert.False(t, store.IsInitialized())

	// Initialize should create the file and its parent directory
	require.NoError(t, store.Initialize())
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, store.IsInitialized())

	// Initialize again should be idempotent and keep existing data
	require.NoError(t, store.Set("k", []byte("v")))
	require.NoError(t, store.Initialize())
	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestStore_NotInitialized(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "state.json"))

	_, err := store.Get("k")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	err = store.Set("k", []byte("v"))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestStore_SetGetDelete(t *testing.T) {
	store := newTestStore(t)

	// Missing key returns nil without error
	got, err := store.Get(domain.KeyCredential)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(domain.KeyCredential, []byte(`{"accessToken":"a"}`)))
	got, err = store.Get(domain.KeyCredential)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a"}`, string(got))

	// Overwrite
	require.NoError(t, store.Set(domain.KeyCredential, []byte(`{}`)))
	got, err = store.Get(domain.KeyCredential)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))

	require.NoError(t, store.Delete(domain.KeyCredential))
	got, err = store.Get(domain.KeyCredential)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete("missing"))
}

func TestStore_BinaryValues(t *testing.T) {
	store := newTestStore(t)
	value := []byte{0x00, 0xff, 0x10, 0x80}

	require.NoError(t, store.Set("bin", value))

	got, err := store.Get("bin")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	value := []byte("abc")
	require.NoError(t, store.Set("k", value))

	value[0] = 'x'
	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestStore_Keys(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(domain.KeyRunningEntry, []byte("1")))
	require.NoError(t, store.Set(domain.KeyAttendance, []byte("2")))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KeyAttendance, domain.KeyRunningEntry}, keys)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	first := New(path)
	require.NoError(t, first.Initialize())
	require.NoError(t, first.Set(domain.KeyProjectTotals, []byte("[]")))

	second := New(path)
	got, err := second.Get(domain.KeyProjectTotals)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestStore_ConcurrentWrites(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + string(rune('a'+i))
			assert.NoError(t, store.Set(key, []byte{byte(i)}))
		}(i)
	}
	wg.Wait()

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 20)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path).Get("k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse state file")
}

func TestStore_NewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"values":{}}`), 0o600))

	_, err := New(path).Get("k")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "state.json"))
	require.NoError(t, store.Initialize())
	require.NoError(t, store.Set("k", []byte("v")))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	info, err := os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
