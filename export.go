package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// exportSnapshot materializes the held snapshot into an .xlsx workbook,
// one worksheet per sheet in order, formulas written as formulas.
func exportSnapshot(st *SnapshotStore, path string) error {
	sheets := st.ListSheets()
	if len(sheets) == 0 {
		return fmt.Errorf("nothing to export: snapshot is empty")
	}

	f := excelize.NewFile()
	defer f.Close()

	ordered := append([]SheetInfo{}, sheets...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for i, info := range ordered {
		name := info.Name
		if name == "" {
			name = info.ID
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename worksheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add worksheet %s: %w", name, err)
		}

		proj, err := st.ProjectTable(info.ID)
		if err != nil {
			return err
		}
		for r := 0; r < proj.Rows; r++ {
			rowKey := itoa(r + 1)
			for c := 0; c < proj.Cols; c++ {
				colKey := encodeColumn(c)
				ref := encodeRef(r, c)
				if fv, ok := proj.Formulas[rowKey][colKey].(string); ok && strings.HasPrefix(fv, "=") {
					if err := f.SetCellFormula(name, ref, strings.TrimPrefix(fv, "=")); err != nil {
						return fmt.Errorf("set formula %s!%s: %w", name, ref, err)
					}
					continue
				}
				v := proj.Values[rowKey][colKey]
				if v == nil {
					continue
				}
				if err := f.SetCellValue(name, ref, v); err != nil {
					return fmt.Errorf("set value %s!%s: %w", name, ref, err)
				}
			}
		}
	}

	return f.SaveAs(path)
}

// importWorkbook loads an .xlsx workbook as a complete snapshot.
func importWorkbook(path string) ([]SheetSnapshot, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []SheetSnapshot
	for order, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		cells := make(map[int]map[int]Cell)
		for r, row := range rows {
			for c, v := range row {
				formula, _ := f.GetCellFormula(name, encodeRef(r, c))
				if v == "" && formula == "" {
					continue
				}
				cell := Cell{}
				if v != "" {
					cell.Value = v
				}
				if formula != "" {
					cell.Formula = "=" + formula
				}
				if cells[r] == nil {
					cells[r] = make(map[int]Cell)
				}
				cells[r][c] = cell
			}
		}
		out = append(out, SheetSnapshot{
			ID:    name,
			Name:  name,
			Order: order,
			Cells: cells,
		})
	}
	return out, nil
}
