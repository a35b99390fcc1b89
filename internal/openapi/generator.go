// Package openapi builds the OpenAPI document served at /openapi.json.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/structsync/structsync/internal/model"
)

// Generate returns the OpenAPI 3.1 description of the HTTP API. When auth is
// true every /api/v1 operation requires a bearer token.
func Generate(baseURL, version string, auth bool) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "structsync API",
			Description: "Compare database schemas and apply the generated DDL.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	if auth {
		doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		}
		doc.Security = openapi3.SecurityRequirements{
			{"bearerAuth": {}},
		}
	}

	doc.Paths = openapi3.NewPaths()
	addPaths(doc)
	return doc
}

func addPaths(doc *openapi3.T) {
	idParam := openapi3.Parameters{
		&openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").
			WithDescription("Connection id or name").
			WithSchema(openapi3.NewStringSchema())},
	}

	health := newResponses("200", "Service is up", object(openapi3.Schemas{"status": str("")}))
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags: []string{"system"}, OperationID: "healthz", Summary: "Liveness probe",
			Responses: health, Security: &openapi3.SecurityRequirements{},
		},
	})

	doc.Paths.Set("/api/v1/connections", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "listConnections",
			Summary:   "List saved connection profiles",
			Responses: newResponses("200", "Profiles ordered by name", resource(ref("Connection"))),
		},
		Post: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "createConnection",
			Summary:     "Save a connection profile",
			RequestBody: body(ref("ConnectionInput")),
			Responses:   newResponses("201", "Saved profile", ref("Connection")),
		},
	})

	doc.Paths.Set("/api/v1/connections/test", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "testConnection",
			Summary:     "Connect and ping without saving",
			RequestBody: body(ref("ConnectionInput")),
			Responses:   newResponses("200", "Connection succeeded", object(openapi3.Schemas{"success": boolean()})),
		},
	})

	doc.Paths.Set("/api/v1/connections/{id}", &openapi3.PathItem{
		Parameters: idParam,
		Get: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "getConnection",
			Summary:   "Get a connection profile",
			Responses: newResponses("200", "Profile", ref("Connection")),
		},
		Put: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "updateConnection",
			Summary:     "Replace a connection profile; empty passwords keep the stored ones",
			RequestBody: body(ref("ConnectionInput")),
			Responses:   newResponses("200", "Updated profile", ref("Connection")),
		},
		Delete: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "deleteConnection",
			Summary:   "Delete a connection profile and its secrets",
			Responses: newResponses("200", "Deleted", object(openapi3.Schemas{"id": str(""), "deleted": boolean()})),
		},
	})

	doc.Paths.Set("/api/v1/connections/{id}/databases", &openapi3.PathItem{
		Parameters: idParam,
		Get: &openapi3.Operation{
			Tags: []string{"connections"}, OperationID: "listDatabases",
			Summary:   "List user databases on the server behind a profile",
			Responses: newResponses("200", "Database names", resource(str(""))),
		},
	})

	doc.Paths.Set("/api/v1/compare", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags: []string{"sync"}, OperationID: "compare",
			Summary:     "Compare two profiles",
			Description: "SQL in the result is written in the target's dialect.",
			RequestBody: body(ref("CompareRequest")),
			Responses:   newResponses("200", "Classified differences", ref("DiffResult")),
		},
	})

	execResponses := newResponses("200", "All statements ran",
		object(openapi3.Schemas{"success": boolean(), "executed": integer("int32")}))
	execResponses.Set("422", errorResponse("A statement failed; context carries statement_index and sql"))
	doc.Paths.Set("/api/v1/execute", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags: []string{"sync"}, OperationID: "execute",
			Summary:     "Run statements against a target, stopping at the first failure",
			RequestBody: body(ref("ExecuteRequest")),
			Responses:   execResponses,
		},
	})

	exportResponses := newResponses("200", "Script written to path",
		object(openapi3.Schemas{"path": str(""), "bytes": integer("int32")}))
	doc.Paths.Set("/api/v1/export", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags: []string{"sync"}, OperationID: "export",
			Summary:     "Render statements as a SQL script",
			Description: "Without a path the script is returned as an application/sql download. A path is relative to the server's export directory.",
			RequestBody: body(object(openapi3.Schemas{
				"statements": array(str("")),
				"path":       str(""),
				"filename":   str(""),
			}, "statements")),
			Responses: exportResponses,
		},
	})

	doc.Paths.Set("/api/v1/runs", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags: []string{"sync"}, OperationID: "listRuns",
			Summary: "Recent comparisons, newest first",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("limit").
					WithSchema(openapi3.NewIntegerSchema())},
			},
			Responses: newResponses("200", "Compare runs", resource(ref("CompareRun"))),
		},
	})
}

func componentSchemas() openapi3.Schemas {
	diffTypes := make([]string, len(model.DiffTypes))
	for i, d := range model.DiffTypes {
		diffTypes[i] = string(d)
	}
	dbTypes := []string{
		string(model.MySQL), string(model.MariaDB), string(model.PostgreSQL), string(model.SQLServer),
	}

	ssh := object(openapi3.Schemas{
		"enabled":          boolean(),
		"host":             str(""),
		"port":             integer("int32"),
		"username":         str(""),
		"auth_method":      enum("password", "privatekey"),
		"password":         writeOnly(str("")),
		"private_key_path": str(""),
		"passphrase":       writeOnly(str("")),
	})
	ssl := object(openapi3.Schemas{
		"enabled":          boolean(),
		"ca_cert_path":     str(""),
		"client_cert_path": str(""),
		"client_key_path":  str(""),
		"verify_server":    boolean(),
	})

	return openapi3.Schemas{
		"ErrorResponse": object(openapi3.Schemas{
			"error": object(openapi3.Schemas{
				"code":    integer("int32"),
				"kind":    str(""),
				"message": str(""),
				"context": object(nil),
			}, "code", "message"),
		}),
		"SSHConfig": ssh,
		"SSLConfig": ssl,
		"Connection": object(openapi3.Schemas{
			"id":         str("uuid"),
			"name":       str(""),
			"db_type":    enum(dbTypes...),
			"host":       str(""),
			"port":       integer("int32"),
			"username":   str(""),
			"database":   str(""),
			"ssh_config": ref("SSHConfig"),
			"ssl_config": ref("SSLConfig"),
			"created_at": str("date-time"),
			"updated_at": str("date-time"),
		}),
		"ConnectionInput": object(openapi3.Schemas{
			"name":       str(""),
			"db_type":    enum(dbTypes...),
			"host":       str(""),
			"port":       integer("int32"),
			"username":   str(""),
			"password":   writeOnly(str("")),
			"database":   str(""),
			"ssh_config": ref("SSHConfig"),
			"ssl_config": ref("SSLConfig"),
		}, "name", "db_type", "host"),
		"CompareRequest": object(openapi3.Schemas{
			"source_id":       str(""),
			"target_id":       str(""),
			"source_database": str(""),
			"target_database": str(""),
		}, "source_id", "target_id"),
		"ExecuteRequest": object(openapi3.Schemas{
			"target_id":       str(""),
			"target_database": str(""),
			"statements":      array(str("")),
		}, "target_id", "statements"),
		"DiffItem": object(openapi3.Schemas{
			"id":          str(""),
			"diff_type":   enum(diffTypes...),
			"table_name":  str(""),
			"object_name": str(""),
			"source_def":  str(""),
			"target_def":  str(""),
			"sql":         str(""),
			"selected":    boolean(),
		}, "id", "diff_type", "table_name", "sql", "selected"),
		"DiffResult": object(openapi3.Schemas{
			"items":         array(ref("DiffItem")),
			"source_tables": integer("int32"),
			"target_tables": integer("int32"),
		}, "items", "source_tables", "target_tables"),
		"CompareRun": object(openapi3.Schemas{
			"id":            integer("int64"),
			"source_id":     str(""),
			"target_id":     str(""),
			"source_tables": integer("int32"),
			"target_tables": integer("int32"),
			"item_count":    integer("int32"),
			"created_at":    str("date-time"),
		}),
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(6)

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})
	responses.Set("400", errorResponse("Bad request"))
	responses.Set("401", errorResponse("Unauthorized"))
	responses.Set("404", errorResponse("Not found"))
	responses.Set("502", errorResponse("Database or SSH host unreachable"))
	responses.Set("500", errorResponse("Internal server error"))
	return responses
}

func errorResponse(description string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &description,
			Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
		},
	}
}

func body(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

// ─── Schema Helpers ─────────────────────────────────────────────────────────

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func object(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func array(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: items,
	}}
}

// resource wraps items in the {"resource": [...]} list envelope.
func resource(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return object(openapi3.Schemas{"resource": array(items)}, "resource")
}

func str(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format}}
}

func integer(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: format}}
}

func boolean() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func enum(values ...string) *openapi3.SchemaRef {
	s := &openapi3.Schema{Type: &openapi3.Types{"string"}}
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return &openapi3.SchemaRef{Value: s}
}

func writeOnly(s *openapi3.SchemaRef) *openapi3.SchemaRef {
	s.Value.WriteOnly = true
	return s
}
