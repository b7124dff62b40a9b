package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceTolerance is the monetary epsilon below which two prices are
// considered equal. Stock is always compared as exact integers; the
// asymmetry is intentional.
var PriceTolerance = decimal.NewFromFloat(0.01)

// CatalogRecord is a single stock-bearing SKU as known by the catalog
// service. Only variants are stock-bearing: main products are never turned
// into CatalogRecords, so anything holding one of these can rely on
// IsVariant being true in practice. Downstream code still checks the flag
// defensively before mutating stock.
type CatalogRecord struct {
	SKU               string
	IsVariant         bool
	ParentProductID   string
	VariantID         string
	DisplayName       string
	CurrentStock      int
	VariantAttributes map[string]string
}

// AttributeSummary renders the variant attributes as a short human-readable
// string for reports, e.g. "size=M color=black".
func (r CatalogRecord) AttributeSummary() string {
	if len(r.VariantAttributes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.VariantAttributes))
	for _, key := range []string{"size", "color", "ws"} {
		if v, ok := r.VariantAttributes[key]; ok && v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	for k, v := range r.VariantAttributes {
		if k == "size" || k == "color" || k == "ws" || v == "" {
			continue
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}

// FeedRecord is a single SKU as reported by the stock spreadsheet for one
// run. Stock and Price are pointers because absence means "not reported",
// which is different from zero.
type FeedRecord struct {
	SKU        string
	Stock      *int
	Price      *decimal.Decimal
	IsOffer    bool
	Name       string
	Size       string
	Color      string
	WheelSize  string
	SourceFile string
}

// HasStock reports whether the feed carried a stock value for this SKU.
func (f FeedRecord) HasStock() bool {
	return f.Stock != nil
}

// StockValue returns the reported stock, or 0 when none was reported.
func (f FeedRecord) StockValue() int {
	if f.Stock == nil {
		return 0
	}
	return *f.Stock
}

// PriceEquals compares a feed price against another price using the
// monetary tolerance. Both absent counts as equal.
func (f FeedRecord) PriceEquals(other *decimal.Decimal) bool {
	if f.Price == nil || other == nil {
		return f.Price == nil && other == nil
	}
	return f.Price.Sub(*other).Abs().LessThan(PriceTolerance)
}
