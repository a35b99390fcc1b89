package service

import (
	"errors"
	"net/http"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/diff"
	"github.com/structsync/structsync/internal/executor"
)

// Kind classifies a service failure.
type Kind string

const (
	KindConnection Kind = "connection"
	KindDatabase   Kind = "database"
	KindStorage    Kind = "storage"
	KindSSHTunnel  Kind = "ssh_tunnel"
	KindSSLConfig  Kind = "ssl_config"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

var kindLabels = map[Kind]string{
	KindConnection: "Connection failed",
	KindDatabase:   "Database error",
	KindStorage:    "Storage error",
	KindSSHTunnel:  "SSH tunnel error",
	KindSSLConfig:  "SSL configuration error",
	KindNotFound:   "Not found",
	KindValidation: "Validation error",
	KindInternal:   "Internal error",
}

// Error is a classified service failure. Message is safe to show to users;
// Err keeps the cause for logging and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrConnection = &Error{Kind: KindConnection}
	ErrDatabase   = &Error{Kind: KindDatabase}
	ErrStorage    = &Error{Kind: KindStorage}
	ErrSSHTunnel  = &Error{Kind: KindSSHTunnel}
	ErrSSLConfig  = &Error{Kind: KindSSLConfig}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrInternal   = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return kindLabels[e.Kind] + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels: errors.Is(err, service.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, msg string, err error) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Classify turns any error into an *Error. Already classified errors pass
// through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var dup *diff.DuplicateNameError
	var stmt *executor.StatementError
	switch {
	case errors.Is(err, config.ErrNotFound):
		return newError(KindNotFound, "", err)
	case errors.Is(err, config.ErrDuplicateName):
		return newError(KindValidation, "", err)
	case errors.As(err, &dup):
		return newError(KindValidation, "", err)
	case errors.As(err, &stmt):
		return newError(KindDatabase, "", err)
	}
	return newError(KindInternal, "", err)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	e := Classify(err)
	if e == nil {
		return http.StatusOK
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindSSLConfig:
		return http.StatusBadRequest
	case KindConnection, KindSSHTunnel:
		return http.StatusBadGateway
	case KindDatabase:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
