package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/structsync/structsync/internal/service"
)

// SyncHandler serves comparisons, execution and script export.
type SyncHandler struct {
	svc       Service
	exportDir string
}

// NewSyncHandler creates a new SyncHandler. Server-side exports are written
// below exportDir; an empty exportDir disables them.
func NewSyncHandler(svc Service, exportDir string) *SyncHandler {
	return &SyncHandler{svc: svc, exportDir: exportDir}
}

// Compare diffs two saved profiles and returns the classified items.
// POST /api/v1/compare
func (h *SyncHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req service.CompareRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "source_id and target_id are required")
		return
	}
	res, err := h.svc.Compare(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// executeResponse reports a completed run. Executed counts statements after
// multi-statement items are split.
type executeResponse struct {
	Success  bool `json:"success"`
	Executed int  `json:"executed"`
}

// Execute runs the given statements against the target, stopping at the
// first failure. The error body names the failing statement.
// POST /api/v1/execute
func (h *SyncHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req service.ExecuteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	n, err := h.svc.Execute(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Success: true, Executed: n})
}

// exportRequest selects what to export. With Path set the script is written
// on the server, relative to the export directory; otherwise it is returned
// as a download.
type exportRequest struct {
	Statements []string `json:"statements"`
	Path       string   `json:"path,omitempty"`
	Filename   string   `json:"filename,omitempty"`
}

// Export renders statements as a SQL script.
// POST /api/v1/export
func (h *SyncHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Statements) == 0 {
		writeError(w, http.StatusBadRequest, "statements are required")
		return
	}
	script := strings.Join(req.Statements, "\n\n") + "\n"

	if req.Path != "" {
		if h.exportDir == "" {
			writeError(w, http.StatusBadRequest, "Server-side export is disabled; omit path to download the script")
			return
		}
		if !filepath.IsLocal(req.Path) {
			writeError(w, http.StatusBadRequest, "path must be relative to the export directory and stay inside it")
			return
		}
		path := filepath.Join(h.exportDir, req.Path)
		if err := h.svc.SaveSQLFile(path, script); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"path": path, "bytes": len(script)})
		return
	}

	name := req.Filename
	if name == "" {
		name = "sync.sql"
	}
	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(script))
}

// Runs lists recent comparisons, newest first.
// GET /api/v1/runs?limit=N
func (h *SyncHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.CompareRuns(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": runs})
}
