package openapi

import (
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/model"
)

func TestGenerateInfo(t *testing.T) {
	doc := Generate("http://localhost:8642", "1.2.3", false)

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	require.NotNil(t, doc.Info)
	assert.Equal(t, "1.2.3", doc.Info.Version)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "http://localhost:8642", doc.Servers[0].URL)
}

func TestGeneratePaths(t *testing.T) {
	doc := Generate("", "dev", false)

	cases := []struct {
		path string
		ops  []string
	}{
		{"/healthz", []string{"GET"}},
		{"/api/v1/connections", []string{"GET", "POST"}},
		{"/api/v1/connections/test", []string{"POST"}},
		{"/api/v1/connections/{id}", []string{"GET", "PUT", "DELETE"}},
		{"/api/v1/connections/{id}/databases", []string{"GET"}},
		{"/api/v1/compare", []string{"POST"}},
		{"/api/v1/execute", []string{"POST"}},
		{"/api/v1/export", []string{"POST"}},
		{"/api/v1/runs", []string{"GET"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			item := doc.Paths.Value(tc.path)
			require.NotNil(t, item)
			for _, method := range tc.ops {
				assert.NotNil(t, item.GetOperation(method), method)
			}
		})
	}
	assert.Equal(t, len(cases), doc.Paths.Len())
}

func TestGenerateOperationIDsUnique(t *testing.T) {
	doc := Generate("", "dev", false)
	seen := map[string]bool{}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			require.NotEmpty(t, op.OperationID, "%s %s", method, path)
			assert.False(t, seen[op.OperationID], "duplicate operation id %s", op.OperationID)
			seen[op.OperationID] = true
		}
	}
}

func TestGenerateSecurity(t *testing.T) {
	open := Generate("", "dev", false)
	assert.Empty(t, open.Security)
	assert.Empty(t, open.Components.SecuritySchemes)

	secured := Generate("", "dev", true)
	require.Len(t, secured.Security, 1)
	scheme := secured.Components.SecuritySchemes["bearerAuth"]
	require.NotNil(t, scheme)
	assert.Equal(t, "bearer", scheme.Value.Scheme)

	health := secured.Paths.Value("/healthz").Get
	require.NotNil(t, health.Security)
	assert.Empty(t, *health.Security, "health check stays public")
}

func TestDiffItemSchemaListsAllTypes(t *testing.T) {
	doc := Generate("", "dev", false)
	item := doc.Components.Schemas["DiffItem"]
	require.NotNil(t, item)

	enum := item.Value.Properties["diff_type"].Value.Enum
	require.Len(t, enum, len(model.DiffTypes))
	for i, d := range model.DiffTypes {
		assert.Equal(t, string(d), enum[i])
	}
}

func TestExecuteDocumentsStatementFailure(t *testing.T) {
	doc := Generate("", "dev", false)
	op := doc.Paths.Value("/api/v1/execute").Post
	require.NotNil(t, op)
	assert.NotNil(t, op.Responses.Value("422"))
	assert.NotNil(t, op.Responses.Value("200"))
}

func TestSecretsAreWriteOnly(t *testing.T) {
	doc := Generate("", "dev", false)
	input := doc.Components.Schemas["ConnectionInput"].Value
	assert.True(t, input.Properties["password"].Value.WriteOnly)
	assert.Contains(t, input.Required, "name")

	conn := doc.Components.Schemas["Connection"].Value
	assert.NotContains(t, conn.Properties, "password")
}

func TestGenerateRoundTrip(t *testing.T) {
	data, err := json.Marshal(Generate("http://localhost:8642", "dev", true))
	require.NoError(t, err)

	loaded, err := openapi3.NewLoader().LoadFromData(data)
	require.NoError(t, err)

	compare := loaded.Paths.Value("/api/v1/compare").Post
	require.NotNil(t, compare)
	schema := compare.Responses.Value("200").Value.Content.Get("application/json").Schema
	require.NotNil(t, schema.Value, "component refs resolve")
	assert.Contains(t, schema.Value.Properties, "items")
}
