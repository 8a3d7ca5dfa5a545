package server

import (
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/light-letter/lightletter/internal/site"
	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/rpc"
	"github.com/light-letter/lightletter/pkg/session"
)

const (
	// SessionCookie carries the session token.
	SessionCookie = "lightletter_session"

	maxRPCBody = 1 << 20
)

// sessionToken returns the token cookie value, or "".
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) requestSession(r *http.Request) (string, *session.Session) {
	token := sessionToken(r)
	return token, s.sessions.Resolve(r.Context(), token)
}

func (s *Server) sessionCookie(r *http.Request, token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

// rpcHandler serves POST /rpc/<path> for one blog site. The response is
// the handler's JSON, or a text/plain error message with the status of
// the error kind. A session changed by the handler is rotated and the
// new token set as cookie.
func (s *Server) rpcHandler(st *site.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commonHeaders(w)
		if r.Method != http.MethodPost {
			plain(w, http.StatusForbidden, rpc.ErrForbidden.Error())
			return
		}
		path := strings.TrimPrefix(r.URL.Path, channel.RPCPrefix)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				plain(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			plain(w, http.StatusBadRequest, rpc.ErrParse.Error())
			return
		}

		token, sess := s.requestSession(r)
		resp, err := st.RPC.Dispatch(r.Context(), path, body, sess)
		if err != nil {
			rerr := rpc.AsError(err)
			msg := rerr.Error()
			if rerr.Kind == rpc.Internal {
				// Backend messages stay in the log.
				msg = rpc.ErrInternal.Error()
			}
			plain(w, rerr.HTTPStatus(), msg)
			return
		}

		if sess.Dirty() {
			next, err := s.sessions.Rotate(r.Context(), token, sess)
			if err != nil {
				s.logger.Error("session not persisted", "site", st.Name, "path", path, "error", err)
				plain(w, http.StatusInternalServerError, rpc.ErrInternal.Error())
				return
			}
			http.SetCookie(w, s.sessionCookie(r, next))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
	}
}
