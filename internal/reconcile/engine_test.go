package reconcile

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync/internal/domain"
)

func variantRecord(sku string, stock int) domain.CatalogRecord {
	return domain.CatalogRecord{
		SKU:             sku,
		IsVariant:       true,
		ParentProductID: "p-" + sku,
		VariantID:       "v-" + sku,
		DisplayName:     "Product " + sku,
		CurrentStock:    stock,
	}
}

func feedRecord(sku string, stock int) domain.FeedRecord {
	return domain.FeedRecord{SKU: sku, Stock: &stock}
}

func TestReconcileMatchedAndNewCandidates(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"A": variantRecord("A", 5),
		"B": variantRecord("B", 0),
	}
	feed := []domain.FeedRecord{
		feedRecord("A", 5),
		feedRecord("C", 3),
	}

	result := Reconcile(index, feed)

	require.Len(t, result.Outcomes, 2)
	require.Len(t, result.NewCandidates, 1)
	assert.Equal(t, "C", result.NewCandidates[0].SKU)

	byID := make(map[string]domain.Outcome)
	for _, o := range result.Outcomes {
		byID[o.SKU] = o
	}

	// A matches with equal stock, B is absent from the feed but already at
	// zero: both are no-ops, so the run would issue zero mutations.
	a := byID["A"]
	assert.Equal(t, domain.ScenarioUpdate, a.Scenario)
	assert.True(t, a.NoOp)

	b := byID["B"]
	assert.Equal(t, domain.ScenarioReset, b.Scenario)
	assert.True(t, b.NoOp)
}

func TestReconcileEmptyFeedResetsEverything(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"A": variantRecord("A", 5),
	}

	result := Reconcile(index, nil)

	require.Len(t, result.Outcomes, 1)
	o := result.Outcomes[0]
	assert.Equal(t, domain.ScenarioReset, o.Scenario)
	assert.False(t, o.NoOp)
	assert.Equal(t, 0, o.StockTarget)
	assert.Equal(t, -5, o.Delta())
}

func TestReconcileChangedStockComputesTarget(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"A": variantRecord("A", 2),
	}
	feed := []domain.FeedRecord{feedRecord("A", 7)}

	result := Reconcile(index, feed)

	require.Len(t, result.Outcomes, 1)
	o := result.Outcomes[0]
	assert.Equal(t, domain.ScenarioUpdate, o.Scenario)
	assert.False(t, o.NoOp)
	assert.Equal(t, 7, o.StockTarget)
	assert.Equal(t, 5, o.Delta())
}

func TestReconcileFeedWithoutStockIsExcludedFromUpdate(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"A": variantRecord("A", 4),
	}
	feed := []domain.FeedRecord{{SKU: "A"}}

	result := Reconcile(index, feed)

	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].NoOp)
	assert.Equal(t, 4, result.Outcomes[0].StockTarget)
}

func TestReconcileDuplicateFeedSKUsFirstWins(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"A": variantRecord("A", 1),
	}
	feed := []domain.FeedRecord{
		feedRecord("A", 3),
		feedRecord("A", 9),
	}

	result := Reconcile(index, feed)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, 3, result.Outcomes[0].StockTarget)
}

func TestReconcileNonVariantIsRefusedNotMutated(t *testing.T) {
	index := map[string]domain.CatalogRecord{
		"MAIN": {SKU: "MAIN", IsVariant: false, CurrentStock: 5},
	}

	result := Reconcile(index, nil)

	assert.Empty(t, result.Outcomes)
	require.Len(t, result.NonVariants, 1)
	assert.Equal(t, "MAIN", result.NonVariants[0].SKU)
}

// genCatalogStocks generates a SKU -> stock map for the catalog side.
func genCatalogStocks() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.IntRange(0, 100))
}

// genFeedStocks generates a SKU -> stock map for the feed side.
func genFeedStocks() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.IntRange(0, 100))
}

func buildInputs(catalogStocks, feedStocks map[string]int) (map[string]domain.CatalogRecord, []domain.FeedRecord) {
	index := make(map[string]domain.CatalogRecord, len(catalogStocks))
	for sku, stock := range catalogStocks {
		index[sku] = variantRecord(sku, stock)
	}
	feed := make([]domain.FeedRecord, 0, len(feedStocks))
	for sku, stock := range feedStocks {
		feed = append(feed, feedRecord(sku, stock))
	}
	return index, feed
}

func TestProperty_ExhaustivePartition(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every SKU in the union is classified exactly once", prop.ForAll(
		func(catalogStocks map[string]int, feedStocks map[string]int) bool {
			index, feed := buildInputs(catalogStocks, feedStocks)
			result := Reconcile(index, feed)

			classified := make(map[string]int)
			for _, o := range result.Outcomes {
				classified[o.SKU]++
			}
			for _, c := range result.NewCandidates {
				classified[c.SKU]++
			}

			union := make(map[string]bool)
			for sku := range catalogStocks {
				union[sku] = true
			}
			for sku := range feedStocks {
				union[sku] = true
			}

			if len(classified) != len(union) {
				return false
			}
			for sku, count := range classified {
				if count != 1 || !union[sku] {
					return false
				}
			}
			return true
		},
		genCatalogStocks(),
		genFeedStocks(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ResetIdempotence(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a second run over the applied state is all no-ops", prop.ForAll(
		func(catalogStocks map[string]int, feedStocks map[string]int) bool {
			index, feed := buildInputs(catalogStocks, feedStocks)
			first := Reconcile(index, feed)

			// Apply every decision to a copy of the catalog state.
			applied := make(map[string]domain.CatalogRecord, len(index))
			for sku, rec := range index {
				applied[sku] = rec
			}
			for _, o := range first.Outcomes {
				rec := applied[o.SKU]
				rec.CurrentStock = o.StockTarget
				applied[o.SKU] = rec
			}

			second := Reconcile(applied, feed)
			for _, o := range second.Outcomes {
				if !o.NoOp {
					return false
				}
			}
			return true
		},
		genCatalogStocks(),
		genFeedStocks(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_DeltaCorrectness(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("applying the delta advances stock from before to target", prop.ForAll(
		func(catalogStocks map[string]int, feedStocks map[string]int) bool {
			index, feed := buildInputs(catalogStocks, feedStocks)
			result := Reconcile(index, feed)

			for _, o := range result.Outcomes {
				if o.Delta() != o.StockTarget-o.StockBefore {
					return false
				}
				if o.StockBefore+o.Delta() != o.StockTarget {
					return false
				}
			}
			return true
		},
		genCatalogStocks(),
		genFeedStocks(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_NonVariantsNeverAppearInOutcomes(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("injected main-product records never become outcomes", prop.ForAll(
		func(catalogStocks map[string]int, feedStocks map[string]int, mainSKUs map[string]int) bool {
			index, feed := buildInputs(catalogStocks, feedStocks)
			for sku, stock := range mainSKUs {
				index["main-"+sku] = domain.CatalogRecord{
					SKU:          "main-" + sku,
					IsVariant:    false,
					CurrentStock: stock,
				}
			}

			result := Reconcile(index, feed)
			for _, o := range result.Outcomes {
				if !o.Record.IsVariant {
					return false
				}
			}
			return true
		},
		genCatalogStocks(),
		genFeedStocks(),
		gen.MapOf(gen.Identifier(), gen.IntRange(0, 100)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
