package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/storefront"
)

const (
	// SessionCookie carries the session ID for browsers.
	SessionCookie = "sf_session"
	// SessionHeader carries the session ID for API clients. It takes
	// precedence over the cookie and is echoed on every response.
	SessionHeader = "X-Session-ID"

	reducedMotionHeader = "Sec-CH-Prefers-Reduced-Motion"
	sessionCookieMaxAge = 365 * 24 * time.Hour
)

type sessionKey struct{}

func sessionFrom(ctx context.Context) *storefront.Session {
	return ctx.Value(sessionKey{}).(*storefront.Session)
}

// withSession resolves the caller's session. A missing or unparsable cookie
// starts a new session; an invalid header is rejected.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := r.Header.Get(SessionHeader)
		fromHeader := id != ""
		if !fromHeader {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}

		s, err := h.sessions.Session(ctx, id)
		if errors.Is(err, storefront.ErrInvalidSession) && !fromHeader {
			id = storefront.NewSessionID()
			s, err = h.sessions.Session(ctx, id)
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if err != nil {
			if errors.Is(err, storefront.ErrInvalidSession) {
				writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
				return
			}
			zctx.From(ctx).Error("Failed to resolve session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}

		if strings.EqualFold(strings.Trim(r.Header.Get(reducedMotionHeader), `" `), "reduce") {
			s.SetReducedMotion(true)
		}

		w.Header().Set(SessionHeader, id)
		ctx = zctx.With(ctx, zap.String("session", id))
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey{}, s)))
	})
}
