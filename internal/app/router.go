package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"psikoadmin/internal/app/apiresp"
	"psikoadmin/internal/app/observability"
	"psikoadmin/internal/assets"
	"psikoadmin/internal/assistant"
	"psikoadmin/internal/auth"
	"psikoadmin/internal/practice"
	"psikoadmin/internal/questionset"
	"psikoadmin/internal/report"
	"psikoadmin/internal/taxonomy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const assetsMount = "/api/v1/assets"

// App holds the HTTP handler and the background workers it depends on.
type App struct {
	Handler  http.Handler
	Practice *practice.Manager
	Taxonomy *taxonomy.Service
	limiter  *IPRateLimiter
}

func New(cfg Config, db *sql.DB) (*App, error) {
	blobs, err := assets.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		return nil, err
	}

	authSvc := auth.NewService(auth.ServiceConfig{
		JWTSecret:       cfg.JWTSecret,
		Issuer:          cfg.JWTIssuer,
		TokenTTL:        time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		EnableLocalAuth: cfg.EnableLocalAuth,
		AdminUser:       cfg.AdminUser,
		AdminPassHash:   cfg.AdminPassHash,
	})
	setSvc := questionset.NewService(db)
	taxonomySvc := taxonomy.NewService(db)
	reportSvc := report.NewService(db)
	manager := practice.NewManager(
		practice.NewResolver(setSvc, taxonomySvc, practice.ResolverConfig{}),
		setSvc,
		reportSvc,
		practice.ManagerConfig{SessionTTL: time.Duration(cfg.PracticeSessionTTLMins) * time.Minute},
	)

	collector := observability.NewCollector(db)
	collector.RegisterGauge("practice_sessions_live", manager.LiveSessions)
	limiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	h := handlers{
		auth:      auth.NewHandler(authSvc, auth.NewChecker(nil)),
		sets:      questionset.NewHandler(setSvc),
		taxonomy:  taxonomy.NewHandler(taxonomySvc),
		assets:    assets.NewHandler(blobs, assets.NewCompressor(cfg.ImageMaxW, cfg.ImageMaxH, float32(cfg.ImageQuality)), assetsMount),
		assistant: assistant.NewHandler(assistant.NewService(assistant.ServiceConfig{GeminiAPIKey: cfg.GeminiAPIKey, GeminiModel: cfg.GeminiModel})),
		practice:  practice.NewHandler(manager),
		results:   report.NewHandler(reportSvc),
		collector: collector,
		limiter:   limiter,
	}
	return &App{
		Handler:  newRouter(cfg, h),
		Practice: manager,
		Taxonomy: taxonomySvc,
		limiter:  limiter,
	}, nil
}

// RunBackground starts the session janitor and rate limiter pruning. It
// returns when ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	go a.Practice.Run(ctx)
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Prune()
		}
	}
}

type handlers struct {
	auth      *auth.Handler
	sets      *questionset.Handler
	taxonomy  *taxonomy.Handler
	assets    *assets.Handler
	assistant *assistant.Handler
	practice  *practice.Handler
	results   *report.Handler
	collector *observability.Collector
	limiter   *IPRateLimiter
}

func newRouter(cfg Config, h handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(h.collector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", h.collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))

		api.Get("/auth/csrf", CSRFTokenHandler(cfg.IsProduction()))
		api.With(RateLimitMiddleware(h.limiter)).Post("/auth/token", h.auth.IssueToken)

		api.Group(func(secure chi.Router) {
			secure.Use(h.auth.RequireAuth)
			secure.Use(observability.TagPrincipal)
			secure.Get("/auth/me", h.auth.Me)

			secure.Route("/question-sets", func(sets chi.Router) {
				sets.With(h.auth.RequirePermission(auth.PermSetsRead)).Get("/", h.sets.List)
				sets.With(h.auth.RequirePermission(auth.PermSetsWrite)).Post("/", h.sets.Create)
				sets.With(h.auth.RequirePermission(auth.PermSetsExport)).Get("/export", h.sets.Export)
				sets.With(h.auth.RequirePermission(auth.PermSetsImport)).Post("/import", h.sets.Import)
				sets.With(h.auth.RequirePermission(auth.PermSetsRead)).Get("/{id}", h.sets.Get)
				sets.With(h.auth.RequirePermission(auth.PermSetsWrite)).Patch("/{id}", h.sets.Update)
				sets.With(h.auth.RequirePermission(auth.PermSetsWrite)).Delete("/{id}", h.sets.Delete)
			})

			secure.With(h.auth.RequirePermission(auth.PermTaxonomyRead)).Get("/taxonomy", h.taxonomy.Catalog)
			secure.With(h.auth.RequirePermission(auth.PermTaxonomyWrite)).Put("/taxonomy/{subcategory}/topics", h.taxonomy.ReplaceTopics)

			secure.With(h.auth.RequirePermission(auth.PermAssetsWrite)).Post("/assets/images", h.assets.UploadImage)
			secure.Get("/assets/*", h.assets.Get)

			secure.With(h.auth.RequirePermission(auth.PermAssistantUse)).Post("/assistant/explanations", h.assistant.DraftExplanation)

			secure.Route("/practice", func(p chi.Router) {
				p.With(h.auth.RequirePermission(auth.PermResultsOwn)).Get("/results", h.results.Results)
				p.Route("/sessions", func(s chi.Router) {
					s.Use(h.auth.RequirePermission(auth.PermPracticeRun))
					s.Post("/", h.practice.Start)
					s.Get("/{id}", h.practice.Get)
					s.Delete("/{id}", h.practice.Close)
					s.Post("/{id}/answers", h.practice.Answer)
					s.Post("/{id}/advance", h.practice.Advance)
					s.Post("/{id}/retreat", h.practice.Retreat)
					s.Get("/{id}/summary", h.practice.Summary)
					s.With(h.auth.RequirePermission(auth.PermPracticeEdit)).Get("/{id}/edit", h.practice.EditSet)
					s.With(h.auth.RequirePermission(auth.PermPracticeEdit)).Patch("/{id}/edit", h.practice.SaveSetEdit)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusNotFound, "route not found")
	})
	return r
}
