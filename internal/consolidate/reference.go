package consolidate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stocksync/internal/feed"
)

// ReferenceEntry is one row of the vendor's article reference sheet,
// keyed by article number (EAN).
type ReferenceEntry struct {
	ArticleNumber string
	Description   string
	Group         string
	ImageURL      string
}

// Reference is the EAN-keyed lookup used to enrich import files with
// descriptions and to resolve product image URLs. A nil Reference is
// valid and simply resolves nothing.
type Reference struct {
	byArticle map[string]ReferenceEntry
}

// LoadReference reads the reference sheet (csv or xlsx). Column names
// follow the vendor export: Artikelnummer, Artikeltext, Gruppentext, Bild.
func LoadReference(path string, logger *zap.Logger) (*Reference, error) {
	rows, err := feed.ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("reference sheet %s has no data rows", path)
	}

	header := rows[0]
	articleCol := findHeader(header, "artikelnummer", "ean")
	descCol := findHeader(header, "artikeltext", "description")
	groupCol := findHeader(header, "gruppentext", "group")
	imageCol := findHeader(header, "bild", "image")
	if articleCol < 0 {
		return nil, fmt.Errorf("reference sheet %s has no article number column", path)
	}

	ref := &Reference{byArticle: make(map[string]ReferenceEntry, len(rows)-1)}
	for _, row := range rows[1:] {
		article := strings.TrimSpace(get(row, articleCol))
		if article == "" {
			continue
		}
		ref.byArticle[article] = ReferenceEntry{
			ArticleNumber: article,
			Description:   strings.TrimSpace(get(row, descCol)),
			Group:         strings.TrimSpace(get(row, groupCol)),
			ImageURL:      strings.TrimSpace(get(row, imageCol)),
		}
	}

	logger.Info("Reference sheet loaded",
		zap.String("path", path),
		zap.Int("entries", len(ref.byArticle)),
	)
	return ref, nil
}

// Lookup resolves an article by SKU, trying the raw value first and then
// the zero-padded 13-digit form numeric SKUs lose in spreadsheet exports.
func (r *Reference) Lookup(sku string) (ReferenceEntry, bool) {
	if r == nil {
		return ReferenceEntry{}, false
	}
	if entry, ok := r.byArticle[sku]; ok {
		return entry, true
	}
	if len(sku) < 13 && isNumeric(sku) {
		padded := strings.Repeat("0", 13-len(sku)) + sku
		if entry, ok := r.byArticle[padded]; ok {
			return entry, true
		}
	}
	return ReferenceEntry{}, false
}

func findHeader(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == candidate {
				return i
			}
		}
	}
	return -1
}

func get(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
