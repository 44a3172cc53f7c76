package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	subject, ok := s[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return subject, nil
}

type stubResolver struct {
	actors map[string]*access.Actor
	err    error
}

func (s stubResolver) ResolveActor(_ context.Context, id string) (*access.Actor, error) {
	if s.err != nil {
		return nil, s.err
	}
	actor, ok := s.actors[id]
	if !ok {
		return nil, access.ErrUnauthenticated
	}
	return actor, nil
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	authn := stubAuthenticator{"good": "user-1", "ghost": "user-2"}
	resolver := stubResolver{actors: map[string]*access.Actor{
		"user-1": {ID: "user-1", Role: access.RoleManager},
	}}

	tests := []struct {
		name     string
		resolver stubResolver
		header   string
		status   int
	}{
		{name: "ok", resolver: resolver, header: "Bearer good", status: http.StatusNoContent},
		{name: "lowercase scheme", resolver: resolver, header: "bearer good", status: http.StatusNoContent},
		{name: "missing", resolver: resolver, header: "", status: http.StatusUnauthorized},
		{name: "empty token", resolver: resolver, header: "Bearer   ", status: http.StatusUnauthorized},
		{name: "unknown token", resolver: resolver, header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "unknown account", resolver: resolver, header: "Bearer ghost", status: http.StatusUnauthorized},
		{name: "resolver failure", resolver: stubResolver{err: errors.New("db down")}, header: "Bearer good", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *access.Actor
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor, err := access.RequireActor(r.Context())
				require.NoError(t, err)
				got = actor
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(authn, tt.resolver)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, got)
				assert.Equal(t, "user-1", got.ID)
				return
			}
			assert.Nil(t, got)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}
