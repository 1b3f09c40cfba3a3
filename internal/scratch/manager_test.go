package scratch

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return m
}

func TestSaveReadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	path, err := m.Save([]byte("PO Number: PO-1"), "order one.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path) || filepath.Dir(path) == m.Dir())
	assert.Contains(t, filepath.Base(path), "order_one.txt")

	got, err := m.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "PO Number: PO-1", string(got))

	info, err := m.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsRegularFile)
	assert.Equal(t, int64(len("PO Number: PO-1")), info.Size)
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Save([]byte("a"), "same.txt")
	require.NoError(t, err)
	b, err := m.Save([]byte("b"), "same.txt")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestReadMissingFileIsProcessingFailure(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Read(filepath.Join(m.Dir(), "nope.txt"))
	require.Error(t, err)
	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindProcessing, f.Kind)
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	path, err := m.Save([]byte("x"), "a.txt")
	require.NoError(t, err)

	require.NoError(t, m.Delete(path))
	// Deleting an already-deleted file must not raise.
	require.NoError(t, m.Delete(path))
}

func TestCleanupAll(t *testing.T) {
	m := newTestManager(t)

	// Empty directory: never raises.
	require.NoError(t, m.CleanupAll())

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := m.Save([]byte("x"), name)
		require.NoError(t, err)
	}
	// Simulate a concurrent delete between list and remove.
	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(m.Dir(), entries[0].Name())))

	require.NoError(t, m.CleanupAll())

	left, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestNewManagerRejectsUnusableDirectory(t *testing.T) {
	_, err := NewManager("", nil)
	require.Error(t, err)
	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindConfiguration, f.Kind)

	// A regular file in the way of the directory path.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	_, err = NewManager(filepath.Join(blocker, "scratch"), nil)
	require.Error(t, err)
	f, ok = failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindConfiguration, f.Kind)
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":          "invoice.pdf",
		"../../etc/passwd":     "passwd",
		"order 12 (final).txt": "order_12__final_.txt",
		"  ":                   "upload",
		"":                     "upload",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}
