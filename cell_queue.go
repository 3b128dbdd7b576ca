package main

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// PendingUpdate is a queued, not-yet-applied single-cell mutation.
// At most one of Value/Formula is set; the formula wins when applying.
type PendingUpdate struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Ref     string `json:"cell"`
	Value   any    `json:"value,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// CellInput is one entry of a batch mutation as it arrives on the wire.
type CellInput struct {
	Ref     string `json:"cell"`
	Value   any    `json:"value,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// UpdateQueues keeps one ordered queue of pending cell mutations per sheet.
// Queues are created lazily: the producer may enqueue for a sheet the
// consumer has never observed. All mutations on a queue are mutually
// exclusive so concurrent producers cannot lose updates.
type UpdateQueues struct {
	mu      sync.Mutex
	pending map[string][]PendingUpdate
}

func NewUpdateQueues() *UpdateQueues {
	return &UpdateQueues{pending: make(map[string][]PendingUpdate)}
}

// EnqueuePoint appends one mutation. A malformed ref surfaces as
// ErrInvalidReference to the caller.
func (q *UpdateQueues) EnqueuePoint(sheetID, ref string, value any, formula string) error {
	row, col, err := parseRef(ref)
	if err != nil {
		return err
	}
	u := PendingUpdate{Row: row, Col: col, Ref: encodeRef(row, col)}
	if formula != "" {
		u.Formula = formula
	} else {
		u.Value = value
	}
	q.mu.Lock()
	q.pending[sheetID] = append(q.pending[sheetID], u)
	q.mu.Unlock()
	return nil
}

// EnqueueBatch appends the decodable items in order and returns how many
// were queued. Items with a malformed ref are dropped silently.
func (q *UpdateQueues) EnqueueBatch(sheetID string, items []CellInput) int {
	queued := make([]PendingUpdate, 0, len(items))
	for _, item := range items {
		row, col, err := parseRef(item.Ref)
		if err != nil {
			log.WithFields(log.Fields{"sheet": sheetID, "cell": item.Ref}).
				Debug("dropping batch item with bad reference")
			continue
		}
		u := PendingUpdate{Row: row, Col: col, Ref: encodeRef(row, col)}
		if item.Formula != "" {
			u.Formula = item.Formula
		} else {
			u.Value = item.Value
		}
		queued = append(queued, u)
	}
	if len(queued) == 0 {
		return 0
	}
	q.mu.Lock()
	q.pending[sheetID] = append(q.pending[sheetID], queued...)
	q.mu.Unlock()
	return len(queued)
}

// EnqueueFromTables converts the table-shaped mutation format (1-based
// string row keys, letter column keys) into queued updates. The values
// table is walked first, the formulas table second; a formula-table entry
// for a cell evicts the value-table entry queued for the same cell earlier
// in this call, so formulas always win. A formulas-table value that does
// not start with "=" is treated as a literal value update. Undecodable keys
// are dropped. Returns the number of updates queued.
func (q *UpdateQueues) EnqueueFromTables(sheetID string, values, formulas map[string]map[string]any) int {
	queued := make([]PendingUpdate, 0)
	seen := make(map[[2]int]int) // (row, col) -> index into queued

	for _, rc := range sortedTableCells(values) {
		if _, dup := seen[[2]int{rc.row, rc.col}]; dup {
			continue
		}
		seen[[2]int{rc.row, rc.col}] = len(queued)
		queued = append(queued, PendingUpdate{
			Row: rc.row, Col: rc.col, Ref: encodeRef(rc.row, rc.col), Value: rc.value,
		})
	}

	for _, rc := range sortedTableCells(formulas) {
		key := [2]int{rc.row, rc.col}
		if at, dup := seen[key]; dup {
			// Formula-table entries override value-table entries for the
			// same cell: drop the earlier one, append at the current slot.
			queued = append(queued[:at], queued[at+1:]...)
			delete(seen, key)
			for k, i := range seen {
				if i > at {
					seen[k] = i - 1
				}
			}
		}
		u := PendingUpdate{Row: rc.row, Col: rc.col, Ref: encodeRef(rc.row, rc.col)}
		if s, ok := rc.value.(string); ok && strings.HasPrefix(s, "=") {
			u.Formula = s
		} else {
			u.Value = rc.value
		}
		seen[key] = len(queued)
		queued = append(queued, u)
	}

	if len(queued) == 0 {
		return 0
	}
	q.mu.Lock()
	q.pending[sheetID] = append(q.pending[sheetID], queued...)
	q.mu.Unlock()
	return len(queued)
}

// Pending returns a copy of the queue for one sheet, oldest first, without
// removing anything.
func (q *UpdateQueues) Pending(sheetID string) []PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingUpdate{}, q.pending[sheetID]...)
}

// Take removes and returns the queue for one sheet in a single critical
// section, so updates enqueued while a consumer cycle is running are never
// wiped unseen.
func (q *UpdateQueues) Take(sheetID string) []PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	ups := q.pending[sheetID]
	delete(q.pending, sheetID)
	return ups
}

// Clear empties the queue for one sheet.
func (q *UpdateQueues) Clear(sheetID string) {
	q.mu.Lock()
	delete(q.pending, sheetID)
	q.mu.Unlock()
}

// SheetIDs returns the ids that currently have a non-empty queue, sorted
// for deterministic consumer iteration.
func (q *UpdateQueues) SheetIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id, ups := range q.pending {
		if len(ups) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// All returns a copy of every non-empty queue, keyed by sheet id.
func (q *UpdateQueues) All() map[string][]PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string][]PendingUpdate, len(q.pending))
	for id, ups := range q.pending {
		if len(ups) > 0 {
			out[id] = append([]PendingUpdate{}, ups...)
		}
	}
	return out
}

// Depth returns the total number of pending updates across all sheets.
func (q *UpdateQueues) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, ups := range q.pending {
		n += len(ups)
	}
	return n
}

type tableCell struct {
	row, col int
	value    any
}

// sortedTableCells flattens one wire table to (row, col, value) triples in
// row-major order. Row keys may arrive wrapped in stray quote characters;
// those are stripped before parsing. Non-numeric row keys, bad column
// letters and nil cells are skipped.
func sortedTableCells(table map[string]map[string]any) []tableCell {
	cells := make([]tableCell, 0)
	for rowKey, cols := range table {
		n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(rowKey), `"'`))
		if err != nil || n < 1 {
			continue
		}
		for colKey, v := range cols {
			if v == nil {
				continue
			}
			col, err := decodeColumn(strings.ToUpper(strings.TrimSpace(colKey)))
			if err != nil {
				continue
			}
			cells = append(cells, tableCell{row: n - 1, col: col, value: v})
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})
	return cells
}
