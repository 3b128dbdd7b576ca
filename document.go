package main

import (
	"fmt"
	"strconv"
	"sync"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

// Document is the call surface of the live document store. The
// reconciliation poller is its only writer; it never touches the document's
// internals directly.
type Document interface {
	GetAllSheets() []SheetInfo
	AddSheet(id string, order int) error
	SetSheetName(id, name string) error
	ActivateSheet(id string) error
	SetCellValue(sheetID string, row, col int, value any, formula string) error
}

// LiveSheet is one sheet of the live workbook. Cells is sparse, keyed
// row -> col, both 0-based.
type LiveSheet struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	Order int                  `json:"order"`
	Cells map[int]map[int]Cell `json:"cells"`
}

// Workbook is an in-memory live document. Mutations are only safe through
// its methods; applied changes are pushed to websocket subscribers when a
// hub is attached.
type Workbook struct {
	mu     sync.RWMutex
	sheets map[string]*LiveSheet
	order  []string
	active string
	hub    *Hub
}

func NewWorkbook(hub *Hub) *Workbook {
	return &Workbook{sheets: make(map[string]*LiveSheet), hub: hub}
}

func (w *Workbook) GetAllSheets() []SheetInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	list := make([]SheetInfo, 0, len(w.order))
	for _, id := range w.order {
		s := w.sheets[id]
		list = append(list, SheetInfo{ID: s.ID, Name: s.Name, Order: s.Order})
	}
	return list
}

func (w *Workbook) AddSheet(id string, order int) error {
	if id == "" {
		return fmt.Errorf("sheet id required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.sheets[id]; exists {
		return fmt.Errorf("sheet %s already exists", id)
	}
	w.sheets[id] = &LiveSheet{ID: id, Order: order, Cells: make(map[int]map[int]Cell)}
	w.order = append(w.order, id)
	return nil
}

func (w *Workbook) SetSheetName(id, name string) error {
	w.mu.Lock()
	s, ok := w.sheets[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSheetNotFound, id)
	}
	s.Name = name
	order := s.Order
	w.mu.Unlock()

	w.notify(&Message{Type: "SHEET_CREATED", SheetID: id, Payload: mustJSON(SheetInfo{ID: id, Name: name, Order: order})})
	return nil
}

func (w *Workbook) ActivateSheet(id string) error {
	w.mu.Lock()
	if _, ok := w.sheets[id]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSheetNotFound, id)
	}
	w.active = id
	w.mu.Unlock()

	w.notify(&Message{Type: "SHEET_ACTIVATED", SheetID: id})
	return nil
}

// ActiveSheet reports the sheet last marked active, for UI observers.
func (w *Workbook) ActiveSheet() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// SetCellValue writes one cell. A non-empty formula takes precedence: the
// formula text is stored verbatim and never evaluated here.
func (w *Workbook) SetCellValue(sheetID string, row, col int, value any, formula string) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	w.mu.Lock()
	s, ok := w.sheets[sheetID]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheetID)
	}
	if s.Cells[row] == nil {
		s.Cells[row] = make(map[int]Cell)
	}
	cell := s.Cells[row][col]
	if formula != "" {
		cell.Formula = formula
	} else {
		cell.Value = value
		cell.Formula = ""
	}
	cell.Formatted = ""
	s.Cells[row][col] = cell
	w.mu.Unlock()

	w.notify(&Message{Type: "CELL_APPLIED", SheetID: sheetID, Payload: mustJSON(PendingUpdate{
		Row: row, Col: col, Ref: encodeRef(row, col), Value: value, Formula: formula,
	})})
	return nil
}

// Cell reads one cell of the live document.
func (w *Workbook) Cell(sheetID string, row, col int) (Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sheets[sheetID]
	if !ok {
		return Cell{}, false
	}
	cell, ok := s.Cells[row][col]
	return cell, ok
}

// Snapshot copies the live workbook into snapshot form, the shape the
// SnapshotStore ingests.
func (w *Workbook) Snapshot() []SheetSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]SheetSnapshot, 0, len(w.order))
	for _, id := range w.order {
		s := w.sheets[id]
		cells := make(map[int]map[int]Cell, len(s.Cells))
		for r, cols := range s.Cells {
			cells[r] = make(map[int]Cell, len(cols))
			for c, cell := range cols {
				cells[r][c] = cell
			}
		}
		out = append(out, SheetSnapshot{ID: s.ID, Name: s.Name, Order: s.Order, Cells: cells})
	}
	return out
}

// SheetPayload marshals one live sheet for the hub's INIT message.
func (w *Workbook) SheetPayload(id string) ([]byte, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sheets[id]
	if !ok {
		return nil, false
	}
	return mustJSON(s), true
}

func (w *Workbook) notify(msg *Message) {
	if w.hub != nil {
		w.hub.Broadcast(msg)
	}
}
