package main

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSheetNotFound is returned when a read targets a sheet id that is not
// present in the last snapshot.
var ErrSheetNotFound = errors.New("sheet not found")

// Cell is one spreadsheet cell. A cell with a formula is displayed using
// Formatted when present, else Value.
type Cell struct {
	Value     any    `json:"value,omitempty"`
	Formula   string `json:"formula,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// display is what the external consumer sees for this cell.
func (c Cell) display() any {
	if c.Formatted != "" {
		return c.Formatted
	}
	return c.Value
}

func (c Cell) empty() bool {
	return c.Value == nil && c.Formula == "" && c.Formatted == ""
}

// SheetSnapshot is one sheet of a point-in-time workbook copy.
// Cells is sparse: row -> col -> cell, both 0-based.
type SheetSnapshot struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	Order int                  `json:"order"`
	Cells map[int]map[int]Cell `json:"cells"`
}

// SheetInfo is the listing form of a sheet.
type SheetInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// FormulaCell indexes one formula-carrying cell of a projection.
type FormulaCell struct {
	Ref     string `json:"cell"`
	Formula string `json:"formula"`
	Value   any    `json:"value"`
}

// Projection is the dense external-notation view of one sheet, bounded to
// the occupied rectangle. Row keys are 1-based decimal strings, column keys
// are letters. Unoccupied cells inside the rectangle are present with a nil
// value so the consumer never has to reconstruct geometry.
type Projection struct {
	Rows         int                       `json:"rows"`
	Cols         int                       `json:"cols"`
	Values       map[string]map[string]any `json:"values_table"`
	Formulas     map[string]map[string]any `json:"formulas_table"`
	FormulaCells []FormulaCell             `json:"formula_cells"`
}

// SnapshotStore holds the latest full workbook snapshot pushed by the
// document owner. Snapshots are replaced wholesale; there is no merging,
// so a stale partial push can never resurrect old cell data.
type SnapshotStore struct {
	mu     sync.RWMutex
	sheets map[string]*SheetSnapshot
	order  []string // insertion order of the last snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{sheets: make(map[string]*SheetSnapshot)}
}

// ReplaceSnapshot swaps the held workbook state for the given one.
// Last writer wins.
func (st *SnapshotStore) ReplaceSnapshot(sheets []SheetSnapshot) {
	next := make(map[string]*SheetSnapshot, len(sheets))
	order := make([]string, 0, len(sheets))
	for i := range sheets {
		s := sheets[i]
		if s.Cells == nil {
			s.Cells = make(map[int]map[int]Cell)
		}
		if _, dup := next[s.ID]; dup {
			continue
		}
		next[s.ID] = &s
		order = append(order, s.ID)
	}
	st.mu.Lock()
	st.sheets = next
	st.order = order
	st.mu.Unlock()
}

// ListSheets returns sheet metadata in snapshot insertion order. The Order
// field is descriptive metadata for the document owner, not a sort key.
func (st *SnapshotStore) ListSheets() []SheetInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()
	list := make([]SheetInfo, 0, len(st.order))
	for _, id := range st.order {
		s := st.sheets[id]
		list = append(list, SheetInfo{ID: s.ID, Name: s.Name, Order: s.Order})
	}
	return list
}

// Count returns the number of sheets in the held snapshot.
func (st *SnapshotStore) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sheets)
}

// bumpOrders increments the order of every sheet whose order is >= from.
// Used when a pending creation logically inserts before the end.
func (st *SnapshotStore) bumpOrders(from int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sheets {
		if s.Order >= from {
			s.Order++
		}
	}
}

// ProjectTable derives the dense projection for one sheet.
func (st *SnapshotStore) ProjectTable(sheetID string) (*Projection, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sheets[sheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetID)
	}
	return projectSheet(s), nil
}

// ProjectAll derives the projection of every held sheet, keyed by sheet id.
func (st *SnapshotStore) ProjectAll() map[string]*Projection {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]*Projection, len(st.sheets))
	for id, s := range st.sheets {
		out[id] = projectSheet(s)
	}
	return out
}

func projectSheet(s *SheetSnapshot) *Projection {
	// The projection always spans at least row 1, column A, even for an
	// empty sheet.
	maxRow, maxCol := 0, 0
	for r, cols := range s.Cells {
		for c, cell := range cols {
			if cell.empty() {
				continue
			}
			if r > maxRow {
				maxRow = r
			}
			if c > maxCol {
				maxCol = c
			}
		}
	}

	p := &Projection{
		Rows:         maxRow + 1,
		Cols:         maxCol + 1,
		Values:       make(map[string]map[string]any, maxRow+1),
		Formulas:     make(map[string]map[string]any, maxRow+1),
		FormulaCells: []FormulaCell{},
	}
	for r := 0; r <= maxRow; r++ {
		rowKey := itoa(r + 1)
		values := make(map[string]any, maxCol+1)
		formulas := make(map[string]any, maxCol+1)
		for c := 0; c <= maxCol; c++ {
			colKey := encodeColumn(c)
			cell, ok := s.Cells[r][c]
			if !ok {
				values[colKey] = nil
				formulas[colKey] = nil
				continue
			}
			v := cell.display()
			values[colKey] = v
			if cell.Formula != "" {
				formulas[colKey] = cell.Formula
				p.FormulaCells = append(p.FormulaCells, FormulaCell{
					Ref:     encodeRef(r, c),
					Formula: cell.Formula,
					Value:   v,
				})
			} else {
				formulas[colKey] = v
			}
		}
		p.Values[rowKey] = values
		p.Formulas[rowKey] = formulas
	}
	return p
}
