package feed

import "strings"

// Column auto-detection works from prioritized candidate-name lists: the
// first candidate present in the header wins. The lists cover the column
// spellings seen across vendor spreadsheets, Spanish and English.
var (
	skuColumns       = []string{"sku", "codigo", "code", "product_code", "item_code", "ref", "item"}
	nameColumns      = []string{"name", "nombre", "product_name", "producto", "title", "titulo", "description", "descripcion", "desc"}
	priceColumns     = []string{"price", "precio", "cost", "coste", "amount", "importe", "evp"}
	offerColumns     = []string{"oferta", "offer", "special_price", "promo_price"}
	stockColumns     = []string{"stock", "quantity", "cantidad", "units", "unidades", "inventory", "stock qty"}
	sizeColumns      = []string{"size", "talla", "taille"}
	colorColumns     = []string{"color", "colour", "couleur"}
	wheelSizeColumns = []string{"ws", "wheel size", "wheel_size", "medida rueda"}
)

// columnMap holds the resolved index of each detected column, -1 when the
// column is absent from the file.
type columnMap struct {
	sku       int
	name      int
	price     int
	offer     int
	stock     int
	size      int
	color     int
	wheelSize int
}

// detectColumns resolves the header row against the candidate lists.
func detectColumns(header []string) columnMap {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return columnMap{
		sku:       findColumn(normalized, skuColumns),
		name:      findColumn(normalized, nameColumns),
		price:     findColumn(normalized, priceColumns),
		offer:     findColumn(normalized, offerColumns),
		stock:     findColumn(normalized, stockColumns),
		size:      findColumn(normalized, sizeColumns),
		color:     findColumn(normalized, colorColumns),
		wheelSize: findColumn(normalized, wheelSizeColumns),
	}
}

// findColumn returns the index of the first candidate present in the
// normalized header, or -1.
func findColumn(normalized []string, candidates []string) int {
	for _, candidate := range candidates {
		for i, col := range normalized {
			if col == candidate {
				return i
			}
		}
	}
	return -1
}

// cell safely reads a column from a row that may be shorter than the
// header.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// isBlank reports whether a cell value carries no usable data. Spreadsheet
// exports render missing values as "nan" or "none" often enough that both
// are treated as empty.
func isBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none":
		return true
	}
	return false
}
