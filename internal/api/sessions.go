package api

import (
	"net/http"
	"time"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/session"
)

type sessionRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	ExpiresAt time.Time      `json:"expires_at"`
	Viewer    session.Viewer `json:"viewer"`
}

// createSession exchanges a backend token for a rootline session id.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	viewer, err := s.backend.Authenticate(r.Context(), body.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := session.New(body.Token, viewer, session.DefaultTTL)
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInternal, err, "store session"))
		return
	}
	s.logger.Info("session created", "viewer", viewer.ID, "moderator", viewer.Moderator)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt, Viewer: viewer})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFrom(r.Context())
	if id == "" {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeUnauthorized, "no session"))
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInternal, err, "delete session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
