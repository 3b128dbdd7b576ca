package main

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// SheetCreation is a pending new-sheet request. It is produced here and
// consumed exactly once by the document owner during reconciliation.
type SheetCreation struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CreationQueue queues pending new-sheet requests and resolves name and
// order collisions against the last snapshot plus the requests still
// waiting to be applied.
type CreationQueue struct {
	mu        sync.Mutex
	pending   []SheetCreation
	snapshots *SnapshotStore
}

func NewCreationQueue(snapshots *SnapshotStore) *CreationQueue {
	return &CreationQueue{snapshots: snapshots}
}

// RequestCreate queues a new-sheet request and returns it. An empty name
// synthesizes "SheetN" with the first unused N; a colliding name gets the
// smallest positive integer suffix that makes it unique. When order lands
// before the end of the workbook, every existing sheet at or past that
// position is shifted up by one.
func (c *CreationQueue) RequestCreate(name string, order *int) SheetCreation {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := make(map[string]bool)
	count := 0
	for _, s := range c.snapshots.ListSheets() {
		known[s.Name] = true
		count++
	}
	for _, p := range c.pending {
		known[p.Name] = true
		count++
	}

	if name == "" {
		for n := 1; ; n++ {
			candidate := "Sheet" + strconv.Itoa(n)
			if !known[candidate] {
				name = candidate
				break
			}
		}
	} else if known[name] {
		for n := 1; ; n++ {
			candidate := name + strconv.Itoa(n)
			if !known[candidate] {
				name = candidate
				break
			}
		}
	}

	pos := count
	if order != nil {
		pos = *order
		if pos < c.snapshots.Count() {
			c.snapshots.bumpOrders(pos)
		}
	}

	req := SheetCreation{ID: uuid.NewString(), Name: name, Order: pos}
	c.pending = append(c.pending, req)
	return req
}

// DrainAndClear removes and returns all pending requests in one critical
// section. Sheet creation must not be replayed, so unlike cell updates
// there is no separate read/clear pair.
func (c *CreationQueue) DrainAndClear() []SheetCreation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// PendingCount reports how many creation requests are waiting.
func (c *CreationQueue) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
