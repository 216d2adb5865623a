package table

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var sheetCleaner = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func sheetName(opts Options) string {
	name := opts.SheetName
	if name == "" {
		name = opts.Name
	}
	name = strings.TrimSpace(sheetCleaner.Replace(name))
	if name == "" {
		return "Data"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// encodeXLSX writes one sheet: a header row of column labels, then one
// row per record. Numbers stay numeric cells.
func encodeXLSX(rows []Row, cols []Column, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(opts)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		label := c.Label
		if label == "" {
			label = c.Key
		}
		header[i] = label

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, float64(max(len([]rune(label)), 15))); err != nil {
			return nil, err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, r := range rows {
		values := make([]any, len(cols))
		for j, c := range cols {
			v := cell(r, c.Key, opts)
			if n, ok := v.Num(); ok {
				values[j] = n
			} else {
				values[j] = v.Text()
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, addr, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
