package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/adapters/http/middleware"
	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/esperancehsu/Gestion-Presence/internal/core/report"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/secure"
)

// RouterParams はルーター構築に必要な依存関係です。
type RouterParams struct {
	Logger             zerolog.Logger
	Authenticator      middleware.Authenticator
	Actors             user.ActorResolver
	Employees          employee.UseCase
	Presences          presence.UseCase
	Reports            report.UseCase
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	// Ready は /healthz で呼び出す疎通確認です。nil の場合は常に成功します。
	Ready func(ctx context.Context) error
}

// NewRouter は API 全体の http.Handler を組み立てます。
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range middleware.RequestLogger(p.Logger) {
		r.Use(mw)
	}
	r.Use(chimw.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}).Handler)
	r.Use(middleware.Metrics(p.Metrics))
	if p.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(p.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", healthz(p.Ready))
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	employees := NewEmployeeHandler(p.Employees, p.Metrics)
	presences := NewPresenceHandler(p.Presences, p.Metrics)
	reports := NewReportHandler(p.Reports, p.Metrics)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Authenticate(p.Authenticator, p.Actors))
		api.Route("/employees", employees.Routes)
		api.Route("/presences", presences.Routes)
		api.Route("/me/presence", presences.SelfRoutes)
		api.Route("/reports", reports.Routes)
	})

	return r
}

func healthz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
