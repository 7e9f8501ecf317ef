package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/notekeeper/internal/convert"
	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/markdown"
	"github.com/and161185/notekeeper/internal/model"
)

// sessionUser returns the session user, or ErrForbidden when the client
// names a different userId.
func sessionUser(r *http.Request, claimed string) (uuid.UUID, error) {
	sess, ok := SessionFromCtx(r.Context())
	if !ok {
		return uuid.Nil, errs.ErrUnauthenticated
	}
	if claimed == "" {
		return sess.UserID, nil
	}
	id, err := convert.ParseID(claimed)
	if err != nil {
		return uuid.Nil, err
	}
	if id != sess.UserID {
		return uuid.Nil, errs.ErrForbidden
	}
	return sess.UserID, nil
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	ns, err := s.notes.List(r.Context(), uid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToNotes(ns))
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var in convert.CreateNote
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	uid, err := sessionUser(r, in.UserID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeError(w, s.log, fmt.Errorf("%w: title is required", errs.ErrValidation))
		return
	}
	n, err := s.notes.Create(r.Context(), uid, in.Title, in.Content)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToNote(*n))
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var in convert.UpdateNote
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	id, patch, err := convert.FromUpdateNote(in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	uid, err := sessionUser(r, "")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	n, err := s.notes.Update(r.Context(), uid, id, patch)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToNote(*n))
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := convert.ParseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	uid, err := sessionUser(r, "")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.notes.Delete(r.Context(), uid, id); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setSharing(w http.ResponseWriter, r *http.Request) {
	id, err := convert.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	shared, err := convert.ParseSharedFlag(body)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	uid, err := sessionUser(r, "")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	n, err := s.notes.SetSharing(r.Context(), uid, id, shared)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	s.writeShared(w, n)
}

func (s *Server) toggleSharing(w http.ResponseWriter, r *http.Request) {
	id, err := convert.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	uid, err := sessionUser(r, "")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	n, err := s.notes.ToggleSharing(r.Context(), uid, id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	s.writeShared(w, n)
}

func (s *Server) writeShared(w http.ResponseWriter, n *model.Note) {
	writeJSON(w, http.StatusOK, convert.SharedNote{Note: convert.ToNote(*n), ShareURL: s.notes.ShareURL(n.ID)})
}

// sharedByParam loads the shared note named by the {id} path parameter.
// Malformed ids are reported as not found, same as private notes.
func (s *Server) sharedByParam(r *http.Request) (*model.Note, error) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		return nil, errs.ErrNotFound
	}
	return s.notes.GetShared(r.Context(), id)
}

func (s *Server) getShared(w http.ResponseWriter, r *http.Request) {
	n, err := s.sharedByParam(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToNote(*n))
}

func (s *Server) getSharedHTML(w http.ResponseWriter, r *http.Request) {
	n, err := s.sharedByParam(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.RenderedNote{
		ID:    n.ID.String(),
		Title: n.Title,
		HTML:  markdown.ToHTML(n.Content),
	})
}

// render previews Markdown without storing anything.
func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	var in convert.RenderRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": markdown.ToHTML(in.Content)})
}
