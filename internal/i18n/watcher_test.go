package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, file string) (*Store, chan error) {
	t.Helper()
	base, err := Load("ru")
	require.NoError(t, err)
	store := NewStore(base)

	w, err := NewWatcher(store, base, file)
	require.NoError(t, err)
	reloads := make(chan error, 8)
	w.onReload = func(err error) { reloads <- err }
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return store, reloads
}

func waitReload(t *testing.T, reloads chan error) error {
	t.Helper()
	select {
	case err := <-reloads:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for locale reload")
		return nil
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	file := filepath.Join(t.TempDir(), "date.yaml")
	store, reloads := startWatcher(t, file)

	require.NoError(t, os.WriteFile(file, []byte("January: Январь\n"), 0644))
	require.NoError(t, waitReload(t, reloads))

	assert.Equal(t, "Январь", store.Get().T("January"))
	assert.Equal(t, "февраля", store.Get().T("February"), "base entries kept")
}

func TestWatcher_KeepsDictionaryOnParseError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "date.yaml")
	store, reloads := startWatcher(t, file)
	before := store.Get()

	require.NoError(t, os.WriteFile(file, []byte("- a\n- b\n"), 0644))
	assert.Error(t, waitReload(t, reloads))
	assert.Same(t, before, store.Get())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	_, reloads := startWatcher(t, filepath.Join(dir, "date.yaml"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("a: b\n"), 0644))

	select {
	case <-reloads:
		t.Fatal("unexpected reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	base, err := Load("ru")
	require.NoError(t, err)
	w, err := NewWatcher(NewStore(base), base, filepath.Join(t.TempDir(), "x.yaml"))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}
