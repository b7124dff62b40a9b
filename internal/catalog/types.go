package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Product is a main product as returned by the catalog service listing.
// Only the fields the sync needs are typed; variants keep their raw field
// map because vendor payload shapes vary and the variant SKU has to be
// probed across several candidate field names.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	CategoryID string    `json:"categoryId"`
	SKU        string    `json:"sku"`
	Variants   []Variant `json:"variants"`
}

// Variant is a size/color/wheel-size specific SKU nested under a main
// product. Fields holds the raw JSON object so SKU resolution can probe
// candidate field names.
type Variant struct {
	ID             string
	Stock          int
	CategoryFields []CategoryField
	Fields         map[string]json.RawMessage
}

// CategoryField is one variant attribute (e.g. name "size", field "M").
type CategoryField struct {
	Name  string `json:"name"`
	Field string `json:"field"`
}

func (v *Variant) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	v.Fields = fields

	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &v.ID)
	}
	if raw, ok := fields["stock"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			v.Stock = int(f)
		}
	}
	if raw, ok := fields["categoryFields"]; ok {
		_ = json.Unmarshal(raw, &v.CategoryFields)
	}
	return nil
}

// skuFieldCandidates is the ordered list of field names a variant SKU may
// hide under, across the vendor API shapes seen in production. First
// non-empty wins.
var skuFieldCandidates = []string{"sku", "code", "reference", "itemCode", "barcode"}

// ResolveSKU returns the variant's SKU via the candidate field list.
func (v *Variant) ResolveSKU() (string, bool) {
	return firstNonEmpty(v.Fields, skuFieldCandidates...)
}

// Attributes flattens the variant's category fields into a lowercase-keyed
// map for reporting.
func (v *Variant) Attributes() map[string]string {
	if len(v.CategoryFields) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(v.CategoryFields))
	for _, cf := range v.CategoryFields {
		key := strings.ToLower(strings.TrimSpace(cf.Name))
		if key == "" || cf.Field == "" {
			continue
		}
		attrs[key] = cf.Field
	}
	return attrs
}

// firstNonEmpty probes an ordered list of candidate field names against a
// raw JSON object and returns the first non-empty value as a string.
// Numeric values are rendered without a trailing ".0" so numeric SKUs stay
// comparable with spreadsheet input.
func firstNonEmpty(fields map[string]json.RawMessage, names ...string) (string, bool) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

// listResponse accepts the two shapes the listing endpoint is known to
// return: a bare array, or an object wrapping a "products" array.
type listResponse struct {
	Products []Product
}

func (r *listResponse) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &r.Products)
	}
	var wrapper struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	r.Products = wrapper.Products
	return nil
}
