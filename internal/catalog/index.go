package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stocksync/internal/domain"
)

// ProductLister is the listing capability the index builder consumes.
type ProductLister interface {
	ListProducts(ctx context.Context, categoryID string, page int) ([]Product, error)
	PageSize() int
}

// Index is the immutable per-run snapshot of the catalog, flattened to
// stock-bearing variants. Main-product SKUs are deliberately excluded:
// "absent from index" must mean "not a stock-bearing variant", never
// "doesn't exist in the catalog at all". The name view exists for
// consolidation, which matches by display name rather than SKU.
type Index struct {
	bySKU  map[string]domain.CatalogRecord
	byName map[string][]domain.CatalogRecord
}

// NewIndex builds an index from pre-flattened records. Intended for the
// builder and for tests; records that are not variants are kept out of the
// SKU index but the constructor does not reject them loudly, mirroring the
// builder's behavior.
func NewIndex(records []domain.CatalogRecord) *Index {
	idx := &Index{
		bySKU:  make(map[string]domain.CatalogRecord, len(records)),
		byName: make(map[string][]domain.CatalogRecord),
	}
	for _, rec := range records {
		if !rec.IsVariant || rec.SKU == "" {
			continue
		}
		idx.bySKU[rec.SKU] = rec
		key := nameKey(rec.DisplayName)
		if key != "" {
			idx.byName[key] = append(idx.byName[key], rec)
		}
	}
	return idx
}

// Lookup returns the record for a SKU.
func (i *Index) Lookup(sku string) (domain.CatalogRecord, bool) {
	rec, ok := i.bySKU[sku]
	return rec, ok
}

// Records exposes the SKU index as a plain map for the reconciliation
// engine, which is a pure function of this snapshot and the feed.
func (i *Index) Records() map[string]domain.CatalogRecord {
	return i.bySKU
}

// VariantsNamed returns every variant whose display name matches,
// case-insensitively.
func (i *Index) VariantsNamed(name string) []domain.CatalogRecord {
	return i.byName[nameKey(name)]
}

// Len is the number of stock-bearing variants in the snapshot.
func (i *Index) Len() int {
	return len(i.bySKU)
}

// BuildIndex pages through the category-filtered product listing to
// exhaustion and flattens the main-product/variant hierarchy into a
// SKU-keyed index of variants. Products without SKU-bearing variants
// contribute nothing; that is a data-integrity signal for the report, not
// an error. Fails with ErrCatalogUnavailable when any page cannot be
// fetched, since a partial index would cause mass false resets.
func BuildIndex(ctx context.Context, lister ProductLister, categoryID string, logger *zap.Logger) (*Index, []string, error) {
	var records []domain.CatalogRecord
	var withoutVariants []string

	page := 1
	for {
		products, err := lister.ListProducts(ctx, categoryID, page)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list catalog page %d: %w", page, err)
		}

		for _, product := range products {
			if len(product.Variants) == 0 {
				// Main products without variants are outside reconciliation
				// scope entirely.
				withoutVariants = append(withoutVariants, product.Name)
				continue
			}
			for idx := range product.Variants {
				variant := &product.Variants[idx]
				sku, ok := variant.ResolveSKU()
				if !ok {
					logger.Warn("Variant without resolvable SKU, skipping",
						zap.String("product", product.Name),
						zap.String("variant_id", variant.ID),
					)
					continue
				}
				records = append(records, domain.CatalogRecord{
					SKU:               sku,
					IsVariant:         true,
					ParentProductID:   product.ID,
					VariantID:         variant.ID,
					DisplayName:       product.Name,
					CurrentStock:      variant.Stock,
					VariantAttributes: variant.Attributes(),
				})
			}
		}

		if len(products) < lister.PageSize() {
			break
		}
		page++
	}

	index := NewIndex(records)
	logger.Info("Catalog index built",
		zap.Int("variants", index.Len()),
		zap.Int("products_without_variants", len(withoutVariants)),
	)
	return index, withoutVariants, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
