package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tavola-kitchen/api/internal/platform/requestctx"
)

const (
	defaultSessionHeader    = "X-Session-ID"
	defaultSessionCookie    = "cart_session"
	defaultSessionCookieTTL = 30 * 24 * time.Hour
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SessionConfig names where the cart session id is carried.
type SessionConfig struct {
	Header       string
	Cookie       string
	CookieTTL    time.Duration
	SecureCookie bool
}

// SessionMiddleware resolves the cart session from the header, then the cookie, and mints
// a new id when neither holds a valid one. The id is echoed in the header and refreshed in
// the cookie so browser and API clients can both continue the session.
func SessionMiddleware(cfg SessionConfig, newID func() string) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Header) == "" {
		cfg.Header = defaultSessionHeader
	}
	if strings.TrimSpace(cfg.Cookie) == "" {
		cfg.Cookie = defaultSessionCookie
	}
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = defaultSessionCookieTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, fromHeader := resolveSession(r, cfg)
			if sessionID == "" {
				sessionID = newID()
			}

			w.Header().Set(cfg.Header, sessionID)
			if !fromHeader {
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.Cookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.CookieTTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := requestctx.WithSessionID(r.Context(), sessionID)
			ctx = requestctx.WithLogger(ctx, requestctx.Logger(ctx).With(zap.String("session_id", sessionID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveSession(r *http.Request, cfg SessionConfig) (string, bool) {
	if id := strings.TrimSpace(r.Header.Get(cfg.Header)); sessionIDPattern.MatchString(id) {
		return id, true
	}
	if cookie, err := r.Cookie(cfg.Cookie); err == nil {
		if id := strings.TrimSpace(cookie.Value); sessionIDPattern.MatchString(id) {
			return id, false
		}
	}
	return "", false
}

func sessionFrom(r *http.Request) string {
	id, _ := requestctx.SessionID(r.Context())
	return id
}
