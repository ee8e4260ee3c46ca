package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/tree"
)

type errorBody struct {
	Code      rlerrors.Code `json:"code"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := rlerrors.GetCode(err)
	status := rlerrors.HTTPStatus(err)
	switch {
	case errors.Is(err, tree.ErrEmptyTraversal):
		code, status = rlerrors.ErrCodeNotFound, http.StatusNotFound
	case errors.Is(err, tree.ErrSuperseded):
		code, status = rlerrors.ErrCodeConflict, http.StatusConflict
	case errors.Is(err, tree.ErrClosed):
		code, status = rlerrors.ErrCodeNotFound, http.StatusNotFound
	}
	if code == "" {
		code = rlerrors.ErrCodeInternal
	}

	if rlerrors.Transient(err) {
		w.Header().Set("Retry-After", "30")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   rlerrors.UserMessage(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// decodeBody decodes a JSON request body into v and validates it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "invalid request body")
	}
	if err := s.validate.Struct(v); err != nil {
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "invalid request: %v", err)
	}
	return nil
}
