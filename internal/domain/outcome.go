package domain

// Scenario classifies how a SKU was handled by reconciliation. The three
// scenarios are disjoint and together cover every SKU seen in either the
// catalog index or the feed.
type Scenario string

const (
	// ScenarioReset covers catalog SKUs absent from the feed: their stock
	// is driven to zero.
	ScenarioReset Scenario = "reset"
	// ScenarioUpdate covers SKUs present in both catalog and feed.
	ScenarioUpdate Scenario = "update"
	// ScenarioNewCandidate covers feed SKUs unknown to the catalog index.
	// These are never mutated by the engine; they go to consolidation.
	ScenarioNewCandidate Scenario = "new_candidate"
)

// Outcome records one reconciliation decision for a single SKU, plus the
// result of applying it. The engine fills in the decision fields; the
// executor fills in Applied and Err.
type Outcome struct {
	SKU         string
	Scenario    Scenario
	Record      CatalogRecord
	StockBefore int
	StockTarget int
	// NoOp means the decision requires no mutation (stock already matches,
	// already zero, or the feed did not report stock for this SKU).
	NoOp    bool
	Applied bool
	Err     string
	// Attributes carries the variant attribute summary for reporting.
	Attributes string
}

// Delta is the signed stock change to submit to the catalog service, which
// maintains its own absolute counter. Always computed against the index
// snapshot the decision was made from, never a fresh read.
func (o Outcome) Delta() int {
	return o.StockTarget - o.StockBefore
}

// ProductDeletion is a scheduled delete of a whole main product with all
// its variants. Deletions are scheduled, not immediate: the consolidated
// replacement variant set must exist before the product is destroyed.
type ProductDeletion struct {
	ParentProductID string
	DisplayName     string
	VariantCount    int
	Applied         bool
	Err             string
}

// DataIntegrityIssue is a report-only signal: a SKU that survived
// reconciliation but could not be carried through a downstream step.
type DataIntegrityIssue struct {
	SKU    string
	Reason string
}
