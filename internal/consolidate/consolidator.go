package consolidate

import (
	"go.uber.org/zap"

	"stocksync/internal/domain"
)

// NameIndex is the name-keyed view of the catalog the consolidator
// matches candidates against. Distinct from the SKU index: consolidation
// searches by display name, not SKU.
type NameIndex interface {
	VariantsNamed(name string) []domain.CatalogRecord
}

// Classification splits new-product candidates into brand-new products
// and new variants of existing products. For the latter, the catalog API
// offers no in-place variant addition, so the parent is scheduled for
// deletion and its existing variants are converted into synthetic feed
// records that survive the delete-and-reimport with their stock intact.
type Classification struct {
	BrandNew    []domain.FeedRecord
	NewVariants []domain.FeedRecord
	Deletions   []domain.ProductDeletion
	// Consolidated is the complete re-import set: converted existing
	// variants merged with their new siblings, followed by the brand-new
	// records.
	Consolidated []domain.FeedRecord
}

// Classify matches each candidate's name against the catalog's variants,
// case-insensitively and exactly. A parent is scheduled for deletion at
// most once no matter how many new variants map to it, and its existing
// variants are converted exactly once.
func Classify(candidates []domain.FeedRecord, names NameIndex, logger *zap.Logger) Classification {
	var result Classification
	scheduled := make(map[string]bool)

	for _, candidate := range candidates {
		existing := names.VariantsNamed(candidate.Name)
		if candidate.Name == "" || len(existing) == 0 {
			result.BrandNew = append(result.BrandNew, candidate)
			result.Consolidated = append(result.Consolidated, candidate)
			continue
		}

		result.NewVariants = append(result.NewVariants, candidate)
		result.Consolidated = append(result.Consolidated, candidate)

		parentID := existing[0].ParentProductID
		if scheduled[parentID] {
			continue
		}
		scheduled[parentID] = true

		result.Deletions = append(result.Deletions, domain.ProductDeletion{
			ParentProductID: parentID,
			DisplayName:     existing[0].DisplayName,
			VariantCount:    len(existing),
		})
		for _, variant := range existing {
			result.Consolidated = append(result.Consolidated, convertExisting(variant))
		}

		logger.Info("Scheduling product consolidation",
			zap.String("product", existing[0].DisplayName),
			zap.String("product_id", parentID),
			zap.Int("existing_variants", len(existing)),
		)
	}
	return result
}

// convertExisting turns a catalog variant into a synthetic feed record so
// it can be re-imported alongside its new siblings with current stock and
// attributes preserved.
func convertExisting(rec domain.CatalogRecord) domain.FeedRecord {
	stock := rec.CurrentStock
	return domain.FeedRecord{
		SKU:       rec.SKU,
		Name:      rec.DisplayName,
		Stock:     &stock,
		Size:      rec.VariantAttributes["size"],
		Color:     rec.VariantAttributes["color"],
		WheelSize: rec.VariantAttributes["ws"],
	}
}
