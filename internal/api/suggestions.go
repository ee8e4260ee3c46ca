package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/suggest"
)

// previewWait bounds how long a preview request waits for reference labels.
// Labels still unresolved afterwards are shown as raw ids.
const previewWait = 5 * time.Second

func (s *Server) requireViewer(w http.ResponseWriter, r *http.Request) bool {
	if viewerFrom(r.Context()).Anonymous() {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeUnauthorized, "login required"))
		return false
	}
	return true
}

func (s *Server) requireModerator(w http.ResponseWriter, r *http.Request) bool {
	if !s.requireViewer(w, r) {
		return false
	}
	if !viewerFrom(r.Context()).Moderator {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeForbidden, "moderator role required"))
		return false
	}
	return true
}

func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	if !s.requireViewer(w, r) {
		return
	}
	var status suggest.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := suggest.ParseFilter(raw)
		if err != nil {
			s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInvalidStatus, err, "unknown status %q", raw))
			return
		}
		status = st
	}
	list, err := s.backend.Suggestions(r.Context(), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []suggest.Suggestion{}
	}
	writeJSON(w, http.StatusOK, list)
}

// previewSuggestion opens a preview session for one request, waits briefly
// for labels and returns its state. The session and its labels are discarded
// when the request ends.
func (s *Server) previewSuggestion(w http.ResponseWriter, r *http.Request) {
	if !s.requireViewer(w, r) {
		return
	}
	sug, err := s.backend.Suggestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pv, err := s.previewer.Open(r.Context(), *sug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer pv.Close()

	waitCtx, cancel := context.WithTimeout(r.Context(), previewWait)
	defer cancel()
	if err := pv.Wait(waitCtx); err != nil {
		s.logger.Debug("preview returned before labels resolved", "suggestion", sug.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, pv.State())
}

type decisionRequest struct {
	Status suggest.Status `json:"status" validate:"required,oneof=approved rejected"`
	Note   string         `json:"note" validate:"max=2000"`
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.review.Decide(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "id"), body.Status, body.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	if !s.requireModerator(w, r) {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit < 1 || limit > 500 {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeInvalidInput, "limit must be between 1 and 500"))
		return
	}
	list, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInternal, err, "list decisions"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}
