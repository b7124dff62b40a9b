package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"stocksync/internal/config"
)

// Lister is the slice of the source client the watcher needs.
type Lister interface {
	ListFolder(ctx context.Context, path string) ([]Entry, error)
	Download(ctx context.Context, path string, w io.Writer) error
}

// StateStore persists the per-path revision map between runs.
type StateStore interface {
	SourceState(ctx context.Context) (map[string]string, error)
	SaveSourceState(ctx context.Context, state map[string]string) error
}

// Watcher detects new and changed feed files in the monitored folder by
// comparing provider revisions against the stored state, and downloads
// them to the process temp dir for normalization.
type Watcher struct {
	client      Lister
	store       StateStore
	folderPath  string
	allowedExts map[string]bool
	maxFileSize int64
	logger      *zap.Logger
}

// NewWatcher creates a watcher over the configured folder.
func NewWatcher(client Lister, store StateStore, srcCfg config.SourceConfig, fileCfg config.FileConfig, logger *zap.Logger) *Watcher {
	allowed := make(map[string]bool, len(fileCfg.AllowedExtensions))
	for _, ext := range fileCfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Watcher{
		client:      client,
		store:       store,
		folderPath:  srcCfg.FolderPath,
		allowedExts: allowed,
		maxFileSize: int64(fileCfg.MaxFileSizeMB) * 1024 * 1024,
		logger:      logger,
	}
}

// CheckForUpdates lists the monitored folder, downloads every file whose
// revision differs from the stored state, and persists the new state.
// Returns local paths of the downloaded files. A missing folder is not an
// error; it yields zero files.
func (w *Watcher) CheckForUpdates(ctx context.Context) ([]string, error) {
	previous, err := w.store.SourceState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source state: %w", err)
	}

	w.logger.Info("Checking monitored folder",
		zap.String("folder", w.folderPath),
	)
	entries, err := w.client.ListFolder(ctx, w.folderPath)
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			w.logger.Error("Monitored folder not found",
				zap.String("folder", w.folderPath),
			)
			return nil, nil
		}
		return nil, err
	}

	current := make(map[string]string, len(entries))
	var downloaded []string
	for _, entry := range entries {
		if !w.eligible(entry) {
			continue
		}
		current[entry.PathLower] = entry.Revision()

		if previous[entry.PathLower] == entry.Revision() {
			continue
		}
		w.logger.Info("Detected new or updated file",
			zap.String("name", entry.Name),
			zap.Int64("size", entry.Size),
		)

		localPath, err := w.download(ctx, entry)
		if err != nil {
			w.logger.Error("File download failed",
				zap.String("name", entry.Name),
				zap.Error(err),
			)
			// Keep the old revision so the next run retries this file.
			if rev, ok := previous[entry.PathLower]; ok {
				current[entry.PathLower] = rev
			} else {
				delete(current, entry.PathLower)
			}
			continue
		}
		downloaded = append(downloaded, localPath)
	}

	if err := w.store.SaveSourceState(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to save source state: %w", err)
	}

	w.logger.Info("Source check finished",
		zap.Int("files", len(downloaded)),
	)
	return downloaded, nil
}

func (w *Watcher) eligible(entry Entry) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name), "."))
	if !w.allowedExts[ext] {
		return false
	}
	if w.maxFileSize > 0 && entry.Size > w.maxFileSize {
		w.logger.Warn("File exceeds size limit, skipping",
			zap.String("name", entry.Name),
			zap.Int64("size", entry.Size),
		)
		return false
	}
	return true
}

func (w *Watcher) download(ctx context.Context, entry Entry) (string, error) {
	localPath := filepath.Join(os.TempDir(), "source_"+entry.Name)
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	defer f.Close()

	if err := w.client.Download(ctx, entry.PathLower, f); err != nil {
		os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

// CleanupTempFiles removes downloaded feed files. Only paths under the
// process temp dir are touched; anything else is a caller-supplied local
// file that must survive the run.
func CleanupTempFiles(paths []string, logger *zap.Logger) {
	tempDir := os.TempDir()
	for _, p := range paths {
		if !strings.HasPrefix(filepath.Clean(p), tempDir) {
			continue
		}
		if err := os.Remove(p); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("Could not remove temporary file",
					zap.String("path", p),
					zap.Error(err),
				)
			}
			continue
		}
		logger.Debug("Removed temporary file",
			zap.String("path", p),
		)
	}
}
