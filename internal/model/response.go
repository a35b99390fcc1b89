package model

import "time"

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
// Kind carries the error classification (connection, database, validation...).
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Kind    string                 `json:"kind,omitempty"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// CompareRun records one finished comparison for the history list.
type CompareRun struct {
	ID           int64     `json:"id" db:"id"`
	SourceID     string    `json:"source_id" db:"source_id"`
	TargetID     string    `json:"target_id" db:"target_id"`
	SourceTables int       `json:"source_tables" db:"source_tables"`
	TargetTables int       `json:"target_tables" db:"target_tables"`
	ItemCount    int       `json:"item_count" db:"item_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
