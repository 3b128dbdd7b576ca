package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server bundles the bridge components behind the HTTP surface the
// mutation proposer and the document owner talk to.
type Server struct {
	snapshots *SnapshotStore
	updates   *UpdateQueues
	creations *CreationQueue
	audit     *AuditLog
	hub       *Hub
}

func NewServer(snapshots *SnapshotStore, updates *UpdateQueues, creations *CreationQueue, audit *AuditLog, hub *Hub) *Server {
	return &Server{
		snapshots: snapshots,
		updates:   updates,
		creations: creations,
		audit:     audit,
		hub:       hub,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/sheets", s.handleListSheets)
	r.Post("/api/sheets", s.handleCreateSheet)
	r.Post("/api/snapshot", s.handleSnapshot)
	r.Get("/api/sheets/excel-tables/all", s.handleAllTables)
	r.Get("/api/sheet/{id}/excel-tables", s.handleTables)
	r.Post("/api/sheet/{id}/cell", s.handleSetCell)
	r.Post("/api/sheet/{id}/cells", s.handleSetCells)
	r.Post("/api/sheet/{id}/from-table", s.handleFromTable)
	r.Get("/api/sheet/{id}/pending-updates", s.handlePendingUpdates)
	r.Delete("/api/sheet/{id}/pending-updates", s.handleClearPending)
	r.Get("/api/pending-updates/all", s.handleAllPending)
	r.Get("/api/audit", s.handleAudit)
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			serveWs(s.hub, w, r)
		})
	}
	return r
}

// The UI shell runs on a different origin during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"sheets":            s.snapshots.Count(),
		"pending_updates":   s.updates.Depth(),
		"pending_creations": s.creations.PendingCount(),
		"timestamp":         time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshots.ListSheets())
}

func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Order *int   `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created := s.creations.RequestCreate(req.Name, req.Order)
	log.WithFields(log.Fields{"sheet": created.ID, "name": created.Name}).Info("sheet creation queued")
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sheets []SheetSnapshot `json:"sheets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.snapshots.ReplaceSnapshot(req.Sheets)
	log.WithField("sheets", len(req.Sheets)).Debug("snapshot replaced")
	writeJSON(w, http.StatusOK, map[string]any{"sheets": len(req.Sheets)})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	proj, err := s.snapshots.ProjectTable(id)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sheet_id":       id,
		"rows":           proj.Rows,
		"cols":           proj.Cols,
		"values_table":   proj.Values,
		"formulas_table": proj.Formulas,
		"formula_cells":  proj.FormulaCells,
	})
}

func (s *Server) handleAllTables(w http.ResponseWriter, r *http.Request) {
	sheets := s.snapshots.ListSheets()
	all := s.snapshots.ProjectAll()
	out := make([]map[string]any, 0, len(sheets))
	for _, info := range sheets {
		proj := all[info.ID]
		out = append(out, map[string]any{
			"sheet_id":       info.ID,
			"name":           info.Name,
			"rows":           proj.Rows,
			"cols":           proj.Cols,
			"values_table":   proj.Values,
			"formulas_table": proj.Formulas,
			"formula_cells":  proj.FormulaCells,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": out, "count": len(out)})
}

func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Cell    string `json:"cell"`
		Value   any    `json:"value"`
		Formula string `json:"formula"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.updates.EnqueuePoint(id, req.Cell, req.Value, req.Formula); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	metricPendingUpdates.Set(float64(s.updates.Depth()))
	writeJSON(w, http.StatusOK, map[string]any{"queued": true, "cell": req.Cell})
}

func (s *Server) handleSetCells(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Cells []CellInput `json:"cells"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n := s.updates.EnqueueBatch(id, req.Cells)
	metricPendingUpdates.Set(float64(s.updates.Depth()))
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) handleFromTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		ValuesTable   map[string]map[string]any `json:"values_table"`
		FormulasTable map[string]map[string]any `json:"formulas_table"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ValuesTable == nil && req.FormulasTable == nil {
		writeError(w, http.StatusBadRequest, errors.New("values_table or formulas_table required"))
		return
	}
	n := s.updates.EnqueueFromTables(id, req.ValuesTable, req.FormulasTable)
	metricPendingUpdates.Set(float64(s.updates.Depth()))
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) handlePendingUpdates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ups := s.updates.Pending(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"sheet_id": id,
		"updates":  ups,
		"count":    len(ups),
	})
}

func (s *Server) handleClearPending(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.updates.Clear(id)
	metricPendingUpdates.Set(float64(s.updates.Depth()))
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true, "sheet_id": id})
}

func (s *Server) handleAllPending(w http.ResponseWriter, r *http.Request) {
	all := s.updates.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"updates": all,
		"sheets":  len(all),
		"total":   s.updates.Depth(),
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.audit.List())
}
