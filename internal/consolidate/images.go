package consolidate

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"stocksync/internal/domain"
)

// ImageBundler downloads product images referenced by the vendor sheet
// and bundles them into a zip for the notification email. Everything here
// is best-effort: a missing or unreachable image is never an error.
type ImageBundler struct {
	reference *Reference
	httpc     *http.Client
	logger    *zap.Logger
}

// NewImageBundler creates a bundler; reference may be nil, in which case
// no images resolve.
func NewImageBundler(reference *Reference, logger *zap.Logger) *ImageBundler {
	return &ImageBundler{
		reference: reference,
		httpc:     &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// Bundle downloads one image per record and writes a zip under dir.
// Returns "" when no image could be resolved or downloaded.
func (b *ImageBundler) Bundle(records []domain.FeedRecord, dir string) (string, error) {
	if b.reference == nil || len(records) == 0 {
		return "", nil
	}

	zipPath := filepath.Join(dir, fmt.Sprintf("product_images_%s.zip", time.Now().Format("20060102_150405")))
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create images zip: %w", err)
	}
	defer zipFile.Close()

	writer := zip.NewWriter(zipFile)
	count := 0
	seen := make(map[string]bool)

	for _, rec := range records {
		entry, ok := b.reference.Lookup(rec.SKU)
		if !ok || entry.ImageURL == "" || seen[entry.ImageURL] {
			continue
		}
		seen[entry.ImageURL] = true

		data, err := b.download(entry.ImageURL)
		if err != nil {
			b.logger.Warn("Image download failed",
				zap.String("sku", rec.SKU),
				zap.Error(err),
			)
			continue
		}

		name := imageFileName(rec, entry.ImageURL)
		w, err := writer.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(data); err != nil {
			continue
		}
		count++
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize images zip: %w", err)
	}
	if count == 0 {
		os.Remove(zipPath)
		return "", nil
	}

	b.logger.Info("Product images bundled",
		zap.String("path", zipPath),
		zap.Int("images", count),
	)
	return zipPath, nil
}

func (b *ImageBundler) download(url string) ([]byte, error) {
	resp, err := b.httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image url returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func imageFileName(rec domain.FeedRecord, url string) string {
	ext := path.Ext(url)
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	base := rec.SKU
	if rec.Color != "" {
		base += "_" + strings.ReplaceAll(strings.ToLower(rec.Color), " ", "-")
	}
	return base + ext
}
