package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/structsync/structsync/internal/executor"
	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

// Service is the set of operations the HTTP API exposes. *service.Service
// satisfies it.
type Service interface {
	ListConnections(ctx context.Context) ([]model.Connection, error)
	GetConnection(ctx context.Context, ref string) (*model.Connection, error)
	SaveConnection(ctx context.Context, in model.ConnectionInput) (*model.Connection, error)
	UpdateConnection(ctx context.Context, id string, in model.ConnectionInput) (*model.Connection, error)
	DeleteConnection(ctx context.Context, id string) error
	TestConnection(ctx context.Context, in model.ConnectionInput) error
	ListDatabases(ctx context.Context, ref string) ([]string, error)

	Compare(ctx context.Context, req service.CompareRequest) (*model.DiffResult, error)
	Execute(ctx context.Context, req service.ExecuteRequest) (int, error)
	CompareRuns(ctx context.Context, limit int) ([]model.CompareRun, error)
	SaveSQLFile(path, content string) error
}

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeServiceError classifies err and writes it with the matching status.
// Execution failures carry the failing statement in the context.
func writeServiceError(w http.ResponseWriter, err error) {
	e := service.Classify(err)
	status := service.HTTPStatus(e)

	var ctxMap map[string]interface{}
	var stmt *executor.StatementError
	if errors.As(err, &stmt) {
		ctxMap = map[string]interface{}{
			"statement_index": stmt.Index,
			"sql":             stmt.SQL,
		}
	}
	writeJSON(w, status, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    status,
			Kind:    string(e.Kind),
			Message: e.Error(),
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// redact strips SSH secrets before a profile leaves the process.
func redact(c model.Connection) model.Connection {
	if c.SSH != nil {
		ssh := *c.SSH
		ssh.Password = ""
		ssh.Passphrase = ""
		c.SSH = &ssh
	}
	return c
}
