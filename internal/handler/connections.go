package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/structsync/structsync/internal/model"
)

// ConnectionHandler manages saved connection profiles.
type ConnectionHandler struct {
	svc Service
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(svc Service) *ConnectionHandler {
	return &ConnectionHandler{svc: svc}
}

// List returns every profile ordered by name.
// GET /api/v1/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.svc.ListConnections(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]model.Connection, len(conns))
	for i, c := range conns {
		out[i] = redact(c)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": out})
}

// Get returns one profile by id or name.
// GET /api/v1/connections/{id}
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(*c))
}

// Create saves a new profile.
// POST /api/v1/connections
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.ConnectionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	c, err := h.svc.SaveConnection(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, redact(*c))
}

// Update replaces a profile. Empty password fields keep the stored secrets.
// PUT /api/v1/connections/{id}
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.ConnectionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	c, err := h.svc.UpdateConnection(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(*c))
}

// Delete removes a profile and its secrets.
// DELETE /api/v1/connections/{id}
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteConnection(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

// Test connects with an unsaved profile and pings the server.
// POST /api/v1/connections/test
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	var in model.ConnectionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.svc.TestConnection(r.Context(), in); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Databases lists the user databases reachable through a profile.
// GET /api/v1/connections/{id}/databases
func (h *ConnectionHandler) Databases(w http.ResponseWriter, r *http.Request) {
	dbs, err := h.svc.ListDatabases(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": dbs})
}
