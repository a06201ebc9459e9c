package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

var itemHeaderAliases = map[string]string{
	"code":             "code",
	"item code":        "code",
	"kode":             "code",
	"kode barang":      "code",
	"name":             "name",
	"item name":        "name",
	"nama":             "name",
	"nama barang":      "name",
	"kind":             "kind",
	"jenis":            "kind",
	"unit":             "unit",
	"satuan":           "unit",
	"category":         "category",
	"kategori":         "category",
	"min stock":        "min_stock",
	"stok minimum":     "min_stock",
	"stok min":         "min_stock",
	"max stock":        "max_stock",
	"stok maksimum":    "max_stock",
	"stok maks":        "max_stock",
	"opening quantity": "opening_quantity",
	"quantity":         "opening_quantity",
	"qty":              "opening_quantity",
	"stok awal":        "opening_quantity",
	"jumlah":           "opening_quantity",
	"price":            "price",
	"unit price":       "price",
	"harga":            "price",
	"harga satuan":     "price",
}

var kindAliases = map[string]domain.ItemKind{
	"atk":        domain.ItemKindATK,
	"alat tulis": domain.ItemKindATK,
	"office":     domain.ItemKindOffice,
	"kantor":     domain.ItemKindOffice,
	"persediaan": domain.ItemKindOffice,
}

// ParseItemRows reads the first sheet of an item registry workbook. Columns
// other than code, name and unit are optional; kind defaults to defaultKind.
func ParseItemRows(reader io.Reader, defaultKind domain.ItemKind) ([]domain.ItemImportRow, error) {
	rows, err := firstSheetRows(reader)
	if err != nil {
		return nil, err
	}

	colMap := mapColumns(rows[0], itemHeaderAliases)
	if err := requireColumns(colMap, "code", "name", "unit"); err != nil {
		return nil, err
	}

	result := make([]domain.ItemImportRow, 0, len(rows)-1)
	seen := make(map[string]int)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		line := index + 1
		code := readCell(cells, colMap["code"])
		if code == "" {
			continue
		}
		if first, dup := seen[code]; dup {
			return nil, fmt.Errorf("row %d repeats code %s from row %d", line, code, first)
		}
		seen[code] = line

		row := domain.ItemImportRow{
			Code:     code,
			Name:     readCell(cells, colMap["name"]),
			Kind:     defaultKind,
			Unit:     readCell(cells, colMap["unit"]),
			Category: optionalCell(cells, colMap, "category"),
			Price:    decimal.Zero,
		}
		if row.Name == "" || row.Unit == "" {
			return nil, fmt.Errorf("row %d: name and unit are required", line)
		}

		if raw := optionalCell(cells, colMap, "kind"); raw != "" {
			kind, ok := kindAliases[strings.ToLower(raw)]
			if !ok {
				return nil, fmt.Errorf("row %d invalid kind %q", line, raw)
			}
			row.Kind = kind
		}
		if !row.Kind.Valid() {
			return nil, fmt.Errorf("row %d: kind is required", line)
		}

		for _, field := range []struct {
			column string
			target *int
		}{
			{"min_stock", &row.MinStock},
			{"max_stock", &row.MaxStock},
			{"opening_quantity", &row.OpeningQuantity},
		} {
			raw := optionalCell(cells, colMap, field.column)
			if raw == "" {
				continue
			}
			value, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid %s: %w", line, field.column, err)
			}
			if value < 0 {
				return nil, fmt.Errorf("row %d invalid %s: cannot be negative", line, field.column)
			}
			*field.target = value
		}

		if raw := optionalCell(cells, colMap, "price"); raw != "" {
			price, err := parseMoney(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid price: %w", line, err)
			}
			if price.IsNegative() {
				return nil, fmt.Errorf("row %d invalid price: cannot be negative", line)
			}
			row.Price = price
		}

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}
