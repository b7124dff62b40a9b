package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stocksync/internal/config"
)

// fakeLister serves canned entries and content.
type fakeLister struct {
	entries     []Entry
	listErr     error
	downloadErr error
	downloads   []string
}

func (f *fakeLister) ListFolder(_ context.Context, _ string) ([]Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeLister) Download(_ context.Context, path string, w io.Writer) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	f.downloads = append(f.downloads, path)
	_, err := w.Write([]byte("content of " + path))
	return err
}

// memoryStore is an in-memory StateStore.
type memoryStore struct {
	state map[string]string
	saved map[string]string
}

func (m *memoryStore) SourceState(_ context.Context) (map[string]string, error) {
	if m.state == nil {
		return map[string]string{}, nil
	}
	return m.state, nil
}

func (m *memoryStore) SaveSourceState(_ context.Context, state map[string]string) error {
	m.saved = state
	return nil
}

func newTestWatcher(lister *fakeLister, store *memoryStore) *Watcher {
	return NewWatcher(lister, store,
		config.SourceConfig{FolderPath: "/inventory-updates"},
		config.FileConfig{AllowedExtensions: []string{"csv", "xlsx"}, MaxFileSizeMB: 1},
		zap.NewNop(),
	)
}

func fileEntry(name, rev string, size int64) Entry {
	return Entry{
		Tag:       "file",
		Name:      name,
		PathLower: "/inventory-updates/" + name,
		Rev:       rev,
		Size:      size,
	}
}

func cleanupDownloads(t *testing.T, paths []string) {
	t.Helper()
	for _, p := range paths {
		os.Remove(p)
	}
}

func TestCheckForUpdatesDownloadsNewFiles(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		fileEntry("feed.csv", "rev-1", 128),
	}}
	store := &memoryStore{}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	defer cleanupDownloads(t, files)

	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "content of /inventory-updates/feed.csv", string(content))
	assert.Equal(t, map[string]string{"/inventory-updates/feed.csv": "rev-1"}, store.saved)
}

func TestCheckForUpdatesSkipsUnchangedFiles(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		fileEntry("feed.csv", "rev-1", 128),
	}}
	store := &memoryStore{state: map[string]string{
		"/inventory-updates/feed.csv": "rev-1",
	}}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	// Unchanged files still appear in the persisted state.
	assert.Equal(t, "rev-1", store.saved["/inventory-updates/feed.csv"])
}

func TestCheckForUpdatesDetectsChangedRevision(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		fileEntry("feed.csv", "rev-2", 128),
	}}
	store := &memoryStore{state: map[string]string{
		"/inventory-updates/feed.csv": "rev-1",
	}}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	defer cleanupDownloads(t, files)

	assert.Len(t, files, 1)
	assert.Equal(t, "rev-2", store.saved["/inventory-updates/feed.csv"])
}

func TestCheckForUpdatesFiltersExtensionAndSize(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		fileEntry("notes.pdf", "rev-1", 128),
		fileEntry("huge.csv", "rev-2", 10*1024*1024),
		fileEntry("ok.csv", "rev-3", 512),
	}}
	store := &memoryStore{}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	defer cleanupDownloads(t, files)

	require.Len(t, files, 1)
	// Filtered files never enter the state.
	assert.Equal(t, map[string]string{"/inventory-updates/ok.csv": "rev-3"}, store.saved)
}

func TestCheckForUpdatesKeepsOldRevisionOnDownloadFailure(t *testing.T) {
	lister := &fakeLister{
		entries:     []Entry{fileEntry("feed.csv", "rev-2", 128)},
		downloadErr: errors.New("network down"),
	}
	store := &memoryStore{state: map[string]string{
		"/inventory-updates/feed.csv": "rev-1",
	}}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	// The old revision survives so the next run retries the download.
	assert.Equal(t, "rev-1", store.saved["/inventory-updates/feed.csv"])
}

func TestCheckForUpdatesMissingFolderIsNotAnError(t *testing.T) {
	lister := &fakeLister{listErr: fmt.Errorf("%w: /inventory-updates", ErrFolderNotFound)}
	store := &memoryStore{}

	files, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCheckForUpdatesPropagatesSourceUnavailable(t *testing.T) {
	lister := &fakeLister{listErr: fmt.Errorf("%w: dial timeout", ErrSourceUnavailable)}
	store := &memoryStore{}

	_, err := newTestWatcher(lister, store).CheckForUpdates(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestEntryRevisionFallsBackToServerModified(t *testing.T) {
	modified := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	e := Entry{ServerModified: modified}
	assert.Equal(t, "2026-03-14T09:30:00Z", e.Revision())

	e.Rev = "rev-9"
	assert.Equal(t, "rev-9", e.Revision())
}

func TestCleanupTempFilesOnlyTouchesTempDir(t *testing.T) {
	tempFile, err := os.CreateTemp("", "source_cleanup_*")
	require.NoError(t, err)
	tempFile.Close()

	outside := "/inventory-updates/keep.csv"

	CleanupTempFiles([]string{tempFile.Name(), outside, ""}, zap.NewNop())

	_, err = os.Stat(tempFile.Name())
	assert.True(t, os.IsNotExist(err))
}
