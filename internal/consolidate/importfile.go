package consolidate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"stocksync/internal/domain"
)

// importColumns is the vendor import schema: one row per variant, parent
// columns repeated on each row. Order matters to the importing side.
var importColumns = []string{
	"SKU",
	"Nombre",
	"Descripción",
	"Talla",
	"Color",
	"Medida de la Rueda",
	"Tipo de Bici",
	"Sku Variante",
	"Precio venta (Subtotal)",
	"Stock",
	"Almacén",
}

// ImportWriter renders the consolidated variant set as an import workbook
// for manual product re-creation in the catalog service.
type ImportWriter struct {
	reference   *Reference
	warehouseID string
	logger      *zap.Logger
}

// NewImportWriter creates a writer; reference may be nil.
func NewImportWriter(reference *Reference, warehouseID string, logger *zap.Logger) *ImportWriter {
	return &ImportWriter{reference: reference, warehouseID: warehouseID, logger: logger}
}

// Write groups records by product name and writes one workbook under dir.
// It returns the workbook path and the set of variant SKUs actually
// written, which the caller diffs against its input for data-integrity
// tracking.
func (w *ImportWriter) Write(records []domain.FeedRecord, dir string) (string, map[string]bool, error) {
	if len(records) == 0 {
		return "", nil, nil
	}

	groups := groupByName(records)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for col, title := range importColumns {
		cellName, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cellName, title); err != nil {
			return "", nil, fmt.Errorf("failed to write import header: %w", err)
		}
	}

	written := make(map[string]bool)
	rowNum := 2
	for _, group := range groups {
		parentSKU := group.variants[0].SKU
		for _, variant := range group.variants {
			entry, _ := w.reference.Lookup(variant.SKU)
			price := ""
			if variant.Price != nil {
				price = variant.Price.StringFixed(2)
			}
			values := []any{
				parentSKU,
				group.name,
				entry.Description,
				variant.Size,
				translateColor(variant.Color),
				normalizeWheelSize(variant.WheelSize),
				categorizeBikeType(entry.Group),
				variant.SKU,
				price,
				variant.StockValue(),
				w.warehouseID,
			}
			for col, v := range values {
				cellName, _ := excelize.CoordinatesToCellName(col+1, rowNum)
				if err := f.SetCellValue(sheet, cellName, v); err != nil {
					return "", nil, fmt.Errorf("failed to write import row: %w", err)
				}
			}
			written[variant.SKU] = true
			rowNum++
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("product_import_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", nil, fmt.Errorf("failed to save import file: %w", err)
	}

	w.logger.Info("Import file written",
		zap.String("path", path),
		zap.Int("products", len(groups)),
		zap.Int("variants", len(written)),
	)
	return path, written, nil
}

type productGroup struct {
	name     string
	variants []domain.FeedRecord
}

// groupByName buckets records into products, ordering variants smallest
// size first so the first SKU becomes the parent-level SKU, and products
// by name for a stable workbook.
func groupByName(records []domain.FeedRecord) []productGroup {
	byName := make(map[string][]domain.FeedRecord)
	var order []string
	for _, rec := range records {
		name := rec.Name
		if name == "" {
			name = "Producto " + rec.SKU
		}
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], rec)
	}
	sort.Strings(order)

	groups := make([]productGroup, 0, len(order))
	for _, name := range order {
		variants := byName[name]
		sort.SliceStable(variants, func(i, j int) bool {
			return sizeRank(variants[i].Size) < sizeRank(variants[j].Size)
		})
		groups = append(groups, productGroup{name: name, variants: variants})
	}
	return groups
}

var sizeOrder = map[string]int{
	"xs": 0, "s": 1, "m": 2, "l": 3, "xl": 4, "xxl": 5,
}

func sizeRank(size string) int {
	if rank, ok := sizeOrder[strings.ToLower(strings.TrimSpace(size))]; ok {
		return rank
	}
	return 99
}

// colorTranslations renders vendor color names in the catalog's language.
// Compound names ("black metallic / mint") translate term by term.
var colorTranslations = map[string]string{
	"black":        "Negro",
	"white":        "Blanco",
	"red":          "Rojo",
	"blue":         "Azul",
	"green":        "Verde",
	"yellow":       "Amarillo",
	"orange":       "Naranja",
	"grey":         "Gris",
	"gray":         "Gris",
	"silver":       "Plateado",
	"gold":         "Dorado",
	"turquoise":    "Turquesa",
	"mint":         "Menta",
	"metallic":     "Metálico",
	"matt":         "Mate",
	"fade":         "Degradado",
	"lightblue":    "Azul Claro",
	"darkblue":     "Azul Oscuro",
	"shadowgrey":   "Gris Sombra",
	"graphitegrey": "Gris Grafito",
	"darkpetrol":   "Azul Petróleo Oscuro",
}

func translateColor(color string) string {
	if strings.TrimSpace(color) == "" {
		return ""
	}
	words := strings.Fields(strings.ToLower(color))
	for i, word := range words {
		if translated, ok := colorTranslations[word]; ok {
			words[i] = translated
			continue
		}
		words[i] = capitalize(word)
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	if word == "" || word == "/" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

// normalizeWheelSize maps vendor wheel sizes to catalog values; 27 is
// sold as 27.5.
func normalizeWheelSize(ws string) string {
	s := strings.TrimSpace(strings.TrimSuffix(ws, ".0"))
	if s == "27" {
		return "27.5"
	}
	return s
}

// categorizeBikeType derives the catalog's bike-type field from the
// vendor group text.
func categorizeBikeType(group string) string {
	g := strings.ToLower(group)
	switch {
	case strings.Contains(g, "e-") || strings.Contains(g, "electr") || strings.Contains(g, "hybrid"):
		return "Bicicleta Eléctrica"
	case strings.Contains(g, "mtb") || strings.Contains(g, "mountain") || strings.Contains(g, "hardtail"):
		return "Bicicleta de Montaña"
	case strings.Contains(g, "gravel"):
		return "Bicicleta Gravel"
	case strings.Contains(g, "trekking") || strings.Contains(g, "cross"):
		return "Bicicleta de Trekking"
	case g == "":
		return ""
	default:
		return "Bicicleta"
	}
}
