package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultPollInterval = 2 * time.Second

// Poller is the consumer side of the bridge. It runs in the
// document-owning context and, on a fixed schedule, drains the creation
// and update queues into the live document. Cycles run to completion and
// are never reentrant.
type Poller struct {
	interval  time.Duration
	updates   *UpdateQueues
	creations *CreationQueue
	doc       Document
	audit     *AuditLog
	log       *log.Entry
}

func NewPoller(interval time.Duration, updates *UpdateQueues, creations *CreationQueue, doc Document, audit *AuditLog) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		interval:  interval,
		updates:   updates,
		creations: creations,
		doc:       doc,
		audit:     audit,
		log:       log.WithField("component", "poller"),
	}
}

// Run executes reconcile on the poller's interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.WithField("interval", p.interval).Info("reconciliation poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info("reconciliation poller stopped")
			return
		case <-ticker.C:
			p.reconcile()
		}
	}
}

// reconcile performs one cycle: apply pending sheet creations, then apply
// each sheet's pending updates. A failure on one request or one cell never
// aborts the rest of the cycle.
func (p *Poller) reconcile() {
	start := time.Now()

	p.applyCreations()

	for _, sheetID := range p.updates.SheetIDs() {
		p.applySheet(sheetID)
	}

	metricReconcileCycles.Inc()
	metricReconcileDuration.Observe(time.Since(start).Seconds())
	metricPendingUpdates.Set(float64(p.updates.Depth()))
}

func (p *Poller) applyCreations() {
	for _, req := range p.creations.DrainAndClear() {
		if p.sheetExists(req.ID) {
			p.log.WithField("sheet", req.ID).Debug("creation request for existing sheet, skipping")
			continue
		}
		if err := p.doc.AddSheet(req.ID, req.Order); err != nil {
			p.log.WithError(err).WithField("sheet", req.ID).Warn("sheet creation failed")
			p.audit.Append(req.ID, "CREATE_FAILED", err.Error())
			continue
		}
		if err := p.doc.SetSheetName(req.ID, req.Name); err != nil {
			p.log.WithError(err).WithField("sheet", req.ID).Warn("sheet rename after creation failed")
		}
		metricSheetsCreated.Inc()
		p.audit.Append(req.ID, "CREATE_SHEET", "created sheet "+req.Name)
	}
}

func (p *Poller) applySheet(sheetID string) {
	// A sheet the producer knows about may not exist in the live document
	// yet; leave its queue populated for a future cycle.
	if !p.sheetExists(sheetID) {
		p.log.WithField("sheet", sheetID).Debug("sheet not in live document, deferring queue")
		return
	}

	ups := p.updates.Take(sheetID)
	if len(ups) == 0 {
		return
	}

	if err := p.doc.ActivateSheet(sheetID); err != nil {
		p.log.WithError(err).WithField("sheet", sheetID).Warn("activate failed")
	}

	applied, failed := 0, 0
	for _, u := range ups {
		if err := p.doc.SetCellValue(sheetID, u.Row, u.Col, u.Value, u.Formula); err != nil {
			failed++
			metricApplyFailures.Inc()
			p.log.WithError(err).WithFields(log.Fields{"sheet": sheetID, "cell": u.Ref}).Warn("cell apply failed")
			p.audit.Append(sheetID, "APPLY_FAILED", fmt.Sprintf("cell %s: %v", u.Ref, err))
			continue
		}
		applied++
		metricAppliedCells.Inc()
	}
	// Take already removed the batch; failed cells are dropped, not retried.
	p.audit.Append(sheetID, "APPLY_CELLS", fmt.Sprintf("applied %d cells, %d failed", applied, failed))
}

func (p *Poller) sheetExists(id string) bool {
	for _, s := range p.doc.GetAllSheets() {
		if s.ID == id {
			return true
		}
	}
	return false
}
