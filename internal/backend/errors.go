package backend

import (
	"net/http"

	"github.com/tansive/sensorthings/internal/common/apperrors"
)

// All errors are derived from ErrBackend.
var (
	ErrBackend = apperrors.New("backend error").SetStatusCode(http.StatusInternalServerError)

	// ErrNotImplemented is returned for operations a backend does not support.
	ErrNotImplemented = ErrBackend.New("not implemented").SetStatusCode(http.StatusNotImplemented)

	// ErrInvalidArgument is returned when a caller passes a value the operation cannot
	// act on, such as an unknown upsert method.
	ErrInvalidArgument = ErrBackend.New("invalid argument").SetStatusCode(http.StatusBadRequest)

	ErrUnknownBackend          = ErrBackend.New("unknown backend").SetStatusCode(http.StatusBadRequest)
	ErrInvalidConnectionParams = ErrBackend.New("invalid connection parameters").SetStatusCode(http.StatusBadRequest)

	// ErrListCollection is returned when a collection's items could not be listed.
	ErrListCollection = ErrBackend.New("unable to list collection").SetStatusCode(http.StatusBadGateway)

	// ErrMissingID is reported when an item has no identifier but the operation needs one.
	ErrMissingID = ErrInvalidArgument.New("item has no identifier")
)
