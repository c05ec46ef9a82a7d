package domain

import (
	"errors"
	"net/http"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnknownDocumentType = errors.New("unknown document type")
	ErrUnknownDepartment   = errors.New("unknown department")
	ErrInvalidRequest      = errors.New("invalid request")

	ErrDocumentCancelled = errors.New("document is cancelled")
	ErrAlreadySigned     = errors.New("document is already signed")
	ErrUnauthorized      = errors.New("department has no role in this document's workflow")
	ErrAlreadyChecked    = errors.New("department already checked this document")
	ErrOutOfOrder        = errors.New("department is not the next expected department")

	ErrAlreadyCancelled = errors.New("document is already cancelled")
	ErrNotSigned        = errors.New("document is not signed")
	ErrAlreadyArchived  = errors.New("document is already archived")

	// ErrStorageConflict means a concurrent writer won the race for the row.
	// It is the only error worth retrying with a fresh read.
	ErrStorageConflict    = errors.New("storage conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// MapHTTPStatus maps domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrStorageConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownDocumentType),
		errors.Is(err, ErrUnknownDepartment),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrDocumentCancelled),
		errors.Is(err, ErrAlreadySigned),
		errors.Is(err, ErrAlreadyChecked),
		errors.Is(err, ErrOutOfOrder),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrNotSigned),
		errors.Is(err, ErrAlreadyArchived):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
