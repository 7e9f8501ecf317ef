package httpserver

import (
	"net"
	"net/http"

	"github.com/and161185/notekeeper/internal/convert"
)

// signUp creates an account and returns a session for it.
func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var in convert.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	sess, u, err := s.auth.SignUp(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToSession(sess, u))
}

// signIn authenticates and returns a fresh session.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var in convert.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	sess, u, err := s.auth.SignIn(r.Context(), in.Email, in.Password, remoteIP(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToSession(sess, u))
}

// signOut revokes the calling session.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromCtx(r.Context())
	if err := s.auth.SignOut(r.Context(), sess.Token); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// remoteIP returns the client address without port. Forwarding headers are
// only reflected here when the server runs WithTrustedProxy.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
