package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"stocksync/internal/domain"
)

var (
	// ErrNoFeedData means the file held no usable product rows. A run
	// precondition: reconciling an empty feed would reset the whole catalog.
	ErrNoFeedData = errors.New("no usable product rows in feed file")
	// ErrUnsupportedFormat means the file extension is not an accepted feed
	// format.
	ErrUnsupportedFormat = errors.New("unsupported feed file format")
)

// maxNameLength keeps product names short enough for email rendering.
const maxNameLength = 100

// Normalizer turns raw spreadsheet/CSV files into canonical feed records.
// Rows without a resolvable SKU are dropped silently: header and footer
// noise is expected in vendor spreadsheets, not an error.
type Normalizer struct {
	allowedExtensions []string
	logger            *zap.Logger
}

// NewNormalizer creates a normalizer accepting the given file extensions.
func NewNormalizer(allowedExtensions []string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		allowedExtensions: allowedExtensions,
		logger:            logger,
	}
}

// NormalizeFile reads a feed file and returns its canonical records.
func (n *Normalizer) NormalizeFile(path string) ([]domain.FeedRecord, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !n.extensionAllowed(ext) {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}

	rows, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file %s: %w", filepath.Base(path), err)
	}
	if len(rows) < 2 {
		return nil, ErrNoFeedData
	}

	records := n.normalizeRows(rows, path)
	if len(records) == 0 {
		return nil, ErrNoFeedData
	}

	n.logger.Info("Feed file normalized",
		zap.String("file", filepath.Base(path)),
		zap.Int("rows", len(rows)-1),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (n *Normalizer) extensionAllowed(ext string) bool {
	for _, allowed := range n.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (n *Normalizer) normalizeRows(rows [][]string, sourceFile string) []domain.FeedRecord {
	cols := detectColumns(rows[0])
	if cols.sku < 0 {
		n.logger.Error("Could not find SKU column in feed file",
			zap.String("file", filepath.Base(sourceFile)),
			zap.Strings("header", rows[0]),
		)
		return nil
	}

	var records []domain.FeedRecord
	for _, row := range rows[1:] {
		sku := cleanSKU(cell(row, cols.sku))
		if sku == "" {
			continue
		}

		record := domain.FeedRecord{
			SKU:        sku,
			SourceFile: sourceFile,
		}

		if name := cell(row, cols.name); !isBlank(name) {
			if len(name) > maxNameLength {
				name = name[:maxNameLength]
			}
			record.Name = name
		}

		// Offer price takes priority over the regular price.
		if price, ok := cleanPrice(cell(row, cols.offer)); ok {
			record.Price = price
			record.IsOffer = true
		} else if price, ok := cleanPrice(cell(row, cols.price)); ok {
			record.Price = price
		}

		if stock, ok := cleanStock(cell(row, cols.stock)); ok {
			record.Stock = &stock
		}

		if size := cell(row, cols.size); !isBlank(size) {
			record.Size = size
		}
		if color := cell(row, cols.color); !isBlank(color) {
			record.Color = color
		}
		if ws := cell(row, cols.wheelSize); !isBlank(ws) {
			record.WheelSize = ws
		}

		// A SKU alone is noise; keep rows that actually report something.
		if record.Price == nil && record.Stock == nil && record.Name == "" {
			continue
		}
		records = append(records, record)
	}
	return records
}

// cleanSKU normalizes a raw SKU cell. Numeric SKUs exported through
// spreadsheets arrive as "12345.0"; the suffix is stripped so they match
// the catalog.
func cleanSKU(raw string) string {
	if isBlank(raw) {
		return ""
	}
	sku := strings.TrimSpace(raw)
	if strings.HasSuffix(sku, ".0") && isDigits(sku[:len(sku)-2]) {
		sku = sku[:len(sku)-2]
	}
	return sku
}

// cleanPrice strips currency symbols and normalizes decimal separators
// before parsing. Values that still fail to parse leave the field absent
// rather than failing the row.
func cleanPrice(raw string) (*decimal.Decimal, bool) {
	if isBlank(raw) {
		return nil, false
	}
	cleaned := strings.NewReplacer("€", "", "$", "", " ", "", " ", "").Replace(raw)
	// "-" alone marks "no price" in vendor sheets.
	if strings.Trim(cleaned, "-") == "" {
		return nil, false
	}
	// European format: dots as thousands separators, comma as decimal.
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil || price.IsNegative() {
		return nil, false
	}
	return &price, true
}

// cleanStock parses a stock cell. The ">10" sentinel means "at least 10"
// and normalizes to 10.
func cleanStock(raw string) (int, bool) {
	if isBlank(raw) {
		return 0, false
	}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, ">") {
		return 10, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f), true
}

func isDigits(s string) bool {
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

// ReadTable reads a tabular file into raw rows, dispatching on extension.
// Shared by the normalizer and the import reference loader.
func ReadTable(path string) ([][]string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return readCSV(path)
	case "xlsx", "xls":
		return readExcel(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// readCSV reads a CSV file, trying UTF-8 first and falling back to the
// Windows/Latin encodings vendor exports commonly use. The delimiter is
// sniffed from the header line.
func readCSV(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(raw) {
		for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
			decoded, decErr := cm.NewDecoder().Bytes(raw)
			if decErr == nil {
				raw = decoded
				break
			}
		}
	}

	content := string(raw)
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}

// sniffDelimiter picks between comma and semicolon based on the header.
func sniffDelimiter(content string) rune {
	header := content
	if idx := strings.IndexByte(content, '\n'); idx > 0 {
		header = content[:idx]
	}
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// readExcel reads the first sheet of an xlsx/xls workbook.
func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet)
}
