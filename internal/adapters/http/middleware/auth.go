package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Authenticator はアクセストークンを検証し、アカウント ID を返します。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Authenticate は Bearer トークンからアカウントを特定し、Actor をコンテキストに格納します。
// トークンが無い、不正、またはアカウントが無効な場合は 401 を返します。
func Authenticate(authn Authenticator, resolver user.ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			subject, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("token rejected")
				writeProblem(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			actor, err := resolver.ResolveActor(r.Context(), subject)
			if errors.Is(err, access.ErrUnauthenticated) {
				writeProblem(w, http.StatusUnauthorized, "account is unknown or inactive")
				return
			}
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Str("subject", subject).Msg("resolve actor")
				writeProblem(w, http.StatusInternalServerError, "an unexpected error occurred")
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("actor_id", actor.ID).Str("role", string(actor.Role))
			})
			next.ServeHTTP(w, r.WithContext(access.WithActor(r.Context(), actor)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="gestion-presence"`)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{Title: http.StatusText(status), Status: status, Detail: detail})
}
