package excel

import (
	"fmt"
	"io"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/xuri/excelize/v2"
)

const countSheetName = "Stock Opname"

var countSheetHeader = []string{"Kode", "Nama Barang", "Satuan", "Stok Sistem", "Stok Fisik", "Keterangan"}

var countHeaderAliases = map[string]string{
	"kode":              "code",
	"kode barang":       "code",
	"code":              "code",
	"item code":         "code",
	"stok fisik":        "physical",
	"jumlah fisik":      "physical",
	"physical":          "physical",
	"physical quantity": "physical",
	"keterangan":        "note",
	"catatan":           "note",
	"note":              "note",
}

// WriteCountSheet renders a count sheet listing items with their current
// quantity and an empty physical count column.
func WriteCountSheet(w io.Writer, items []domain.Item, generatedAt time.Time) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", countSheetName); err != nil {
		return fmt.Errorf("name count sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, title := range countSheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(countSheetName, cell, title); err != nil {
			return fmt.Errorf("write header %s: %w", title, err)
		}
	}
	if err := file.SetCellStyle(countSheetName, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, item := range items {
		row := i + 2
		values := []any{item.Code, item.Name, item.Unit, item.Quantity}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(countSheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	widths := map[string]float64{"A": 16, "B": 40, "C": 10, "D": 12, "E": 12, "F": 30}
	for col, width := range widths {
		if err := file.SetColWidth(countSheetName, col, col, width); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	if err := file.SetDocProps(&excelize.DocProperties{
		Title:   "Stock Opname",
		Created: generatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("set document properties: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write count sheet: %w", err)
	}
	return nil
}

// ParseCountSheet reads physical counts from a filled count sheet. Rows whose
// physical column is blank were not counted and are skipped.
func ParseCountSheet(reader io.Reader) ([]domain.OpnameCountRow, error) {
	rows, err := firstSheetRows(reader)
	if err != nil {
		return nil, err
	}

	colMap := mapColumns(rows[0], countHeaderAliases)
	if err := requireColumns(colMap, "code", "physical"); err != nil {
		return nil, err
	}

	result := make([]domain.OpnameCountRow, 0, len(rows)-1)
	seen := make(map[string]bool)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		code := readCell(cells, colMap["code"])
		raw := readCell(cells, colMap["physical"])
		if code == "" || raw == "" {
			continue
		}
		if seen[code] {
			return nil, fmt.Errorf("row %d repeats code %s", index+1, code)
		}
		seen[code] = true

		physical, err := parseInt(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d invalid physical count: %w", index+1, err)
		}
		if physical < 0 {
			return nil, fmt.Errorf("row %d invalid physical count: cannot be negative", index+1)
		}

		row := domain.OpnameCountRow{ItemCode: code, PhysicalQuantity: physical}
		if note := optionalCell(cells, colMap, "note"); note != "" {
			row.Note = &note
		}
		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("count sheet has no counted rows")
	}
	return result, nil
}
