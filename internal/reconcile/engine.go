package reconcile

import (
	"sort"

	"stocksync/internal/domain"
)

// Result partitions every SKU seen in the catalog index or the feed into
// exactly one bucket. Outcomes carry the Reset and Update decisions;
// NewCandidates are feed SKUs unknown to the index, handed to
// consolidation untouched. NonVariants is the defensive refusal bucket:
// the index builder never emits non-variant records, but if one slips in
// it must not be mutated, so it is surfaced here for the report instead of
// becoming an outcome.
type Result struct {
	Outcomes      []domain.Outcome
	NewCandidates []domain.FeedRecord
	NonVariants   []domain.CatalogRecord
}

// Reconcile partitions SKUs into the three scenarios and computes the
// minimal set of mutations. Pure function of its two inputs: no side
// effects, no catalog calls, so identical inputs always yield the
// identical set of decisions.
//
//	Reset:  SKU in index, absent from feed  -> target stock 0 (no-op if already 0)
//	Update: SKU in both                     -> target stock = feed (no-op if equal or not reported)
//	New:    SKU in feed, absent from index  -> candidate for consolidation
func Reconcile(index map[string]domain.CatalogRecord, feed []domain.FeedRecord) Result {
	var result Result

	// Duplicate SKUs in a feed are collapsed first-wins so each SKU is
	// classified exactly once.
	seen := make(map[string]bool, len(feed))

	for _, record := range feed {
		if record.SKU == "" || seen[record.SKU] {
			continue
		}
		seen[record.SKU] = true

		catalogRec, inCatalog := index[record.SKU]
		if !inCatalog {
			result.NewCandidates = append(result.NewCandidates, record)
			continue
		}
		if !catalogRec.IsVariant {
			result.NonVariants = append(result.NonVariants, catalogRec)
			continue
		}

		outcome := domain.Outcome{
			SKU:         record.SKU,
			Scenario:    domain.ScenarioUpdate,
			Record:      catalogRec,
			StockBefore: catalogRec.CurrentStock,
			StockTarget: catalogRec.CurrentStock,
			NoOp:        true,
			Attributes:  catalogRec.AttributeSummary(),
		}
		// A feed record without a stock value means "not reported", which
		// excludes the SKU from update consideration rather than zeroing it.
		if record.HasStock() && record.StockValue() != catalogRec.CurrentStock {
			outcome.StockTarget = record.StockValue()
			outcome.NoOp = false
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	// Catalog SKUs the feed no longer mentions are reset to zero.
	resetSKUs := make([]string, 0)
	for sku := range index {
		if !seen[sku] {
			resetSKUs = append(resetSKUs, sku)
		}
	}
	sort.Strings(resetSKUs)

	for _, sku := range resetSKUs {
		catalogRec := index[sku]
		if !catalogRec.IsVariant {
			result.NonVariants = append(result.NonVariants, catalogRec)
			continue
		}
		result.Outcomes = append(result.Outcomes, domain.Outcome{
			SKU:         sku,
			Scenario:    domain.ScenarioReset,
			Record:      catalogRec,
			StockBefore: catalogRec.CurrentStock,
			StockTarget: 0,
			NoOp:        catalogRec.CurrentStock == 0,
			Attributes:  catalogRec.AttributeSummary(),
		})
	}

	return result
}
