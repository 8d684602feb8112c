package app

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/CrissP24/citrus-flow-sim/internal/services/session"
)

// requireSession lets the request through only while a valid login marker exists.
func (g *Gateway) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.deps.Sessions.Current(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sess, err := g.deps.Sessions.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.User, Timestamp: sess.Timestamp})
}

func (g *Gateway) HandleLogout(w http.ResponseWriter, r *http.Request) {
	g.deps.Sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.deps.Sessions.Current(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.User, Timestamp: sess.Timestamp})
}
