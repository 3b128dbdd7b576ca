package main

import (
	"sync"
	"time"
)

const auditLimit = 1000

// AuditEntry records one reconciliation event.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Sheet     string    `json:"sheet,omitempty"`
	Action    string    `json:"action"` // e.g. "APPLY_CELLS", "CREATE_SHEET", "APPLY_FAILED"
	Details   string    `json:"details"`
}

// AuditLog keeps a bounded in-memory trail of reconcile activity.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Append(sheet, action, details string) {
	entry := AuditEntry{
		Timestamp: time.Now(),
		Sheet:     sheet,
		Action:    action,
		Details:   details,
	}
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	if len(a.entries) > auditLimit {
		a.entries = a.entries[len(a.entries)-auditLimit:]
	}
	a.mu.Unlock()
}

func (a *AuditLog) List() []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AuditEntry{}, a.entries...)
}
