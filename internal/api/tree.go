package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/tree"
)

// HeaderViewID identifies a server-side tree view.
const HeaderViewID = "X-View-ID"

const maxUploadBytes = 10 << 20

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, rlerrors.New(rlerrors.ErrCodeInvalidInput, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func treeRequest(r *http.Request) (tree.Request, error) {
	req := tree.NewRequest(chi.URLParam(r, "ref"))
	var err error
	if req.Up, err = queryInt(r, "up", req.Up); err != nil {
		return req, err
	}
	if req.Down, err = queryInt(r, "down", req.Down); err != nil {
		return req, err
	}
	if req.MaxNodes, err = queryInt(r, "max", req.MaxNodes); err != nil {
		return req, err
	}
	return req, req.Validate()
}

// getTree loads a traversal into the caller's view, creating one when the
// request carries no known view id. A newer load on the same view supersedes
// an older one still in flight; the older request gets 409.
func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	req, err := treeRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	viewer := viewerFrom(r.Context())
	id, view := s.views.open(r.Header.Get(HeaderViewID), viewer.ID)
	w.Header().Set(HeaderViewID, id)

	if err := view.Load(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, ok := view.Render()
	if !ok {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeConflict, "view changed during load"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) viewFor(r *http.Request) (*tree.View, error) {
	id := r.Header.Get(HeaderViewID)
	if id == "" {
		return nil, rlerrors.New(rlerrors.ErrCodeInvalidInput, "%s header is required", HeaderViewID)
	}
	v, ok := s.views.get(id, viewerFrom(r.Context()).ID)
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeNotFound, "unknown view %s", id)
	}
	return v, nil
}

type hopRequest struct {
	FromID string `json:"from_id" validate:"omitempty,max=128"`
}

type hopResponse struct {
	ID    string `json:"id"`
	Moved bool   `json:"moved"`
}

// hop moves to the next appearance of the person behind ref. With from_id
// the cycle starts at that appearance.
func (s *Server) hop(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body hopRequest
	if r.ContentLength != 0 {
		if err := s.decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	ref := chi.URLParam(r, "ref")
	var resp hopResponse
	if body.FromID != "" {
		n, ok := view.Appearance(body.FromID)
		if !ok {
			s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeNotFound, "appearance %s is not in this view", body.FromID))
			return
		}
		if n.Ref != ref {
			s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeInvalidInput, "appearance %s belongs to %s, not %s", body.FromID, n.Ref, ref))
			return
		}
		resp.ID, resp.Moved = view.HopFrom(body.FromID)
	} else {
		resp.ID, resp.Moved = view.Hop(ref)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) closeView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.views.get(id, viewerFrom(r.Context()).ID); !ok {
		s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeNotFound, "unknown view %s", id))
		return
	}
	s.views.drop(id)
	w.WriteHeader(http.StatusNoContent)
}

type pictureResponse struct {
	URL     string `json:"url"`
	Updated int    `json:"updated"`
}

// uploadPicture stores a new picture for the person behind ref and applies it
// to every appearance in the caller's view.
func (s *Server) uploadPicture(w http.ResponseWriter, r *http.Request) {
	view, err := s.viewFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeInvalidInput, "image exceeds %d bytes", maxUploadBytes))
			return
		}
		s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "multipart field \"image\" is required"))
		return
	}
	defer file.Close()

	url, updated, err := view.UploadPicture(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "ref"), hdr.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pictureResponse{URL: url, Updated: updated})
}
