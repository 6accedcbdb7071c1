package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
)

const (
	retryAfter  = "5"
	jsonMaxBody = 1 << 20
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, jsonMaxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", common.ErrorValidation)
		}
		return fmt.Errorf("%w: invalid JSON: %v", common.ErrorValidation, err)
	}
	return nil
}

// statusFromError maps service, saga and storage errors onto a status code
// and a message safe to show to clients.
func statusFromError(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case saga.IsValidation(err), errors.Is(err, common.ErrorValidation), errors.Is(err, blobstore.ErrInvalidPayload):
		return http.StatusBadRequest, innerMessage(err)
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, saga.ErrUnknownKey):
		return http.StatusConflict, innerMessage(err)
	case errors.Is(err, common.ErrVersionConflict):
		return http.StatusConflict, "record was modified concurrently, retry"
	case saga.IsStorage(err) && blobstore.IsTransient(err):
		return http.StatusServiceUnavailable, "storage temporarily unavailable"
	case saga.IsStorage(err):
		return http.StatusBadGateway, "storage error"
	}
	return http.StatusInternalServerError, "internal error"
}

// innerMessage strips the saga envelope, which names internal record IDs.
func innerMessage(err error) string {
	var se *saga.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFromError(err)

	switch {
	case code >= http.StatusInternalServerError:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	case code != http.StatusNotFound && code != http.StatusUnauthorized:
		s.logger.Debug(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}

	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfter)
	}
	s.writeJSON(w, code, envelope{Message: msg})
}
