package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/executor"
	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

// fakeService keeps profiles in memory and records what the handlers ask for.
type fakeService struct {
	conns    map[string]model.Connection
	result   *model.DiffResult
	execErr  error
	executed []service.ExecuteRequest
	compared []service.CompareRequest
	files    map[string]string
	testErr  error
}

func newFakeService() *fakeService {
	return &fakeService{conns: map[string]model.Connection{}, files: map[string]string{}}
}

func (f *fakeService) ListConnections(ctx context.Context) ([]model.Connection, error) {
	out := make([]model.Connection, 0, len(f.conns))
	for _, c := range f.conns {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeService) GetConnection(ctx context.Context, ref string) (*model.Connection, error) {
	c, ok := f.conns[ref]
	if !ok {
		return nil, config.ErrNotFound
	}
	return &c, nil
}

func (f *fakeService) SaveConnection(ctx context.Context, in model.ConnectionInput) (*model.Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, &service.Error{Kind: service.KindValidation, Message: err.Error(), Err: err}
	}
	c := in.ToConnection()
	c.ID = "id-" + in.Name
	f.conns[c.ID] = c
	return &c, nil
}

func (f *fakeService) UpdateConnection(ctx context.Context, id string, in model.ConnectionInput) (*model.Connection, error) {
	if _, ok := f.conns[id]; !ok {
		return nil, config.ErrNotFound
	}
	c := in.ToConnection()
	c.ID = id
	f.conns[id] = c
	return &c, nil
}

func (f *fakeService) DeleteConnection(ctx context.Context, id string) error {
	if _, ok := f.conns[id]; !ok {
		return config.ErrNotFound
	}
	delete(f.conns, id)
	return nil
}

func (f *fakeService) TestConnection(ctx context.Context, in model.ConnectionInput) error {
	return f.testErr
}

func (f *fakeService) ListDatabases(ctx context.Context, ref string) ([]string, error) {
	if _, ok := f.conns[ref]; !ok {
		return nil, config.ErrNotFound
	}
	return []string{"app", "app_v2"}, nil
}

func (f *fakeService) Compare(ctx context.Context, req service.CompareRequest) (*model.DiffResult, error) {
	f.compared = append(f.compared, req)
	return f.result, nil
}

func (f *fakeService) Execute(ctx context.Context, req service.ExecuteRequest) (int, error) {
	f.executed = append(f.executed, req)
	if f.execErr != nil {
		return 0, f.execErr
	}
	n := 0
	for _, sql := range req.Statements {
		n += len(model.SplitStatements(sql))
	}
	return n, nil
}

func (f *fakeService) CompareRuns(ctx context.Context, limit int) ([]model.CompareRun, error) {
	return []model.CompareRun{{ID: 1, SourceID: "a", TargetID: "b", ItemCount: 3, CreatedAt: time.Unix(0, 0).UTC()}}, nil
}

func (f *fakeService) SaveSQLFile(path, content string) error {
	f.files[path] = content
	return nil
}

const exportRoot = "/srv/structsync/exports"

func newRouter(svc Service) chi.Router {
	conns := NewConnectionHandler(svc)
	sync := NewSyncHandler(svc, exportRoot)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connections", conns.List)
		r.Post("/connections", conns.Create)
		r.Post("/connections/test", conns.Test)
		r.Get("/connections/{id}", conns.Get)
		r.Put("/connections/{id}", conns.Update)
		r.Delete("/connections/{id}", conns.Delete)
		r.Get("/connections/{id}/databases", conns.Databases)
		r.Post("/compare", sync.Compare)
		r.Post("/execute", sync.Execute)
		r.Post("/export", sync.Export)
		r.Get("/runs", sync.Runs)
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConnectionCRUD(t *testing.T) {
	svc := newFakeService()
	r := newRouter(svc)

	w := do(t, r, "POST", "/api/v1/connections", model.ConnectionInput{
		Name: "prod", DbType: model.PostgreSQL, Host: "db.internal", Username: "app", Password: "secret",
		SSH: &model.SSHConfig{Enabled: true, Host: "bastion", Username: "ops", AuthMethod: model.SSHAuthPassword, Password: "tunnel"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "tunnel")

	var created model.Connection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "id-prod", created.ID)
	assert.Equal(t, uint16(5432), created.Port)

	w = do(t, r, "GET", "/api/v1/connections/id-prod", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "tunnel")

	w = do(t, r, "GET", "/api/v1/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Resource []model.Connection `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Resource, 1)

	w = do(t, r, "PUT", "/api/v1/connections/id-prod", model.ConnectionInput{Name: "prod", DbType: model.PostgreSQL, Host: "db2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "db2", svc.conns["id-prod"].Host)

	w = do(t, r, "GET", "/api/v1/connections/id-prod/databases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resource":["app","app_v2"]}`, w.Body.String())

	w = do(t, r, "DELETE", "/api/v1/connections/id-prod", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.conns)

	w = do(t, r, "GET", "/api/v1/connections/id-prod", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Kind)
}

func TestCreateConnectionValidation(t *testing.T) {
	r := newRouter(newFakeService())

	w := do(t, r, "POST", "/api/v1/connections", model.ConnectionInput{Name: "x", DbType: "oracle", Host: "h"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decodeError(t, w).Kind)

	req := httptest.NewRequest("POST", "/api/v1/connections", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestConnection(t *testing.T) {
	svc := newFakeService()
	r := newRouter(svc)
	in := model.ConnectionInput{Name: "x", DbType: model.MySQL, Host: "h"}

	w := do(t, r, "POST", "/api/v1/connections/test", in)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	svc.testErr = &service.Error{Kind: service.KindSSHTunnel, Message: "handshake failed"}
	w = do(t, r, "POST", "/api/v1/connections/test", in)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "SSH tunnel error: handshake failed", decodeError(t, w).Message)
}

func TestCompare(t *testing.T) {
	svc := newFakeService()
	svc.result = &model.DiffResult{
		Items: []model.DiffItem{
			{ID: "1", DiffType: model.TableAdded, TableName: "orders", SQL: "CREATE TABLE `orders` (\n  `id` INT NOT NULL\n);", Selected: true},
		},
		SourceTables: 2,
		TargetTables: 1,
	}
	r := newRouter(svc)

	w := do(t, r, "POST", "/api/v1/compare", service.CompareRequest{SourceID: "staging", TargetID: "prod", TargetDB: "app"})
	require.Equal(t, http.StatusOK, w.Code)

	var res model.DiffResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.TableAdded, res.Items[0].DiffType)
	assert.Equal(t, 2, res.SourceTables)
	assert.Equal(t, []service.CompareRequest{{SourceID: "staging", TargetID: "prod", TargetDB: "app"}}, svc.compared)

	w = do(t, r, "POST", "/api/v1/compare", service.CompareRequest{SourceID: "staging"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecute(t *testing.T) {
	svc := newFakeService()
	r := newRouter(svc)

	req := service.ExecuteRequest{TargetID: "prod", Statements: []string{"DROP INDEX i ON t;\nCREATE INDEX i ON t (a);", "B;"}}
	w := do(t, r, "POST", "/api/v1/execute", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"executed":3}`, w.Body.String())
	assert.Equal(t, []service.ExecuteRequest{req}, svc.executed)

	svc.execErr = service.Classify(&executor.StatementError{Index: 2, SQL: "B;", Err: errors.New("table exists")})
	w = do(t, r, "POST", "/api/v1/execute", req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, "database", detail.Kind)
	assert.Equal(t, float64(2), detail.Context["statement_index"])
	assert.Equal(t, "B;", detail.Context["sql"])

	w = do(t, r, "POST", "/api/v1/execute", service.ExecuteRequest{Statements: []string{"A;"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	svc := newFakeService()
	r := newRouter(svc)
	stmts := []string{"DROP TABLE `a`;", "DROP TABLE `b`;"}

	w := do(t, r, "POST", "/api/v1/export", map[string]interface{}{"statements": stmts})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/sql; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sync.sql"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "DROP TABLE `a`;\n\nDROP TABLE `b`;\n", w.Body.String())

	w = do(t, r, "POST", "/api/v1/export", map[string]interface{}{"statements": stmts, "path": "out/sync.sql"})
	require.Equal(t, http.StatusOK, w.Code)
	want := filepath.Join(exportRoot, "out", "sync.sql")
	assert.Equal(t, "DROP TABLE `a`;\n\nDROP TABLE `b`;\n", svc.files[want])
	assert.Contains(t, w.Body.String(), want)

	w = do(t, r, "POST", "/api/v1/export", map[string]interface{}{"statements": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPathStaysInExportDir(t *testing.T) {
	svc := newFakeService()
	r := newRouter(svc)

	for _, path := range []string{"/tmp/owned/x.sql", "../x.sql", "a/../../x.sql"} {
		w := do(t, r, "POST", "/api/v1/export", map[string]interface{}{"statements": []string{"SELECT 1;"}, "path": path})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	assert.Empty(t, svc.files)
}

func TestExportToDiskDisabled(t *testing.T) {
	svc := newFakeService()
	r := chi.NewRouter()
	r.Post("/export", NewSyncHandler(svc, "").Export)

	w := do(t, r, "POST", "/export", map[string]interface{}{"statements": []string{"SELECT 1;"}, "path": "x.sql"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.files)

	w = do(t, r, "POST", "/export", map[string]interface{}{"statements": []string{"SELECT 1;"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRuns(t *testing.T) {
	r := newRouter(newFakeService())
	w := do(t, r, "GET", "/api/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Resource []model.CompareRun `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Resource, 1)
	assert.Equal(t, 3, body.Resource[0].ItemCount)
}
