package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/internal/api/handlers"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/pkg/crypto"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Engine         *authz.Engine
	Encryptor      *crypto.Encryptor
	AsynqClient    *asynq.Client
	AllowedOrigins []string
	RateLimitReqs  int
	RateLimitSecs  int
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	auditLogger := audit.NewLogger(cfg.DB, cfg.AsynqClient, cfg.Logger)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	clientHandler := handlers.NewClientHandler(cfg.DB, auditLogger)
	invoiceHandler := handlers.NewInvoiceHandler(cfg.DB, auditLogger)
	quoteHandler := handlers.NewQuoteHandler(cfg.DB, auditLogger)
	budgetHandler := handlers.NewBudgetHandler(cfg.DB, auditLogger)
	memberHandler := handlers.NewMemberHandler(cfg.DB, cfg.Engine, auditLogger)
	roleHandler := handlers.NewRoleHandler(cfg.DB, cfg.Engine, auditLogger)
	credentialHandler := handlers.NewCredentialHandler(cfg.DB, cfg.Encryptor, auditLogger)
	recurringHandler := handlers.NewRecurringInvoiceHandler(cfg.DB, cfg.AsynqClient, auditLogger)
	auditHandler := handlers.NewAuditHandler(cfg.DB, auditLogger)
	dashboardHandler := handlers.NewDashboardHandler(cfg.DB)

	// Health endpoint (no auth required)
	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByOrg(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			r.Get("/me", authHandler.Me)
			r.Post("/auth/switch-organization", authHandler.SwitchOrganization)

			r.With(middleware.RequirePermission(cfg.Engine, "organization:read")).
				Get("/dashboard", dashboardHandler.Stats)

			r.Route("/clients", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourceClient, func(r chi.Router) {
					r.Get("/", clientHandler.List)
					r.Get("/{id}", clientHandler.Get)
				}, func(r chi.Router) {
					r.Post("/", clientHandler.Create)
				}, func(r chi.Router) {
					r.Put("/{id}", clientHandler.Update)
					r.Post("/{id}/archive", clientHandler.Archive)
				}, func(r chi.Router) {
					r.Delete("/{id}", clientHandler.Delete)
				})
			})

			r.Route("/invoices", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourceInvoice, func(r chi.Router) {
					r.Get("/", invoiceHandler.List)
					r.Get("/{id}", invoiceHandler.Get)
				}, func(r chi.Router) {
					r.Post("/", invoiceHandler.Create)
				}, func(r chi.Router) {
					r.Put("/{id}", invoiceHandler.Update)
					r.Post("/{id}/mark-paid", invoiceHandler.MarkPaid)
					r.Post("/{id}/void", invoiceHandler.Void)
				}, func(r chi.Router) {
					r.Delete("/{id}", invoiceHandler.Delete)
				})
				r.With(middleware.RequirePermission(cfg.Engine, "invoice:send")).
					Post("/{id}/send", invoiceHandler.Send)
			})

			r.Route("/recurring-invoices", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourceInvoice, func(r chi.Router) {
					r.Get("/", recurringHandler.List)
					r.Get("/{id}", recurringHandler.Get)
				}, func(r chi.Router) {
					r.Post("/", recurringHandler.Create)
					r.Post("/{id}/trigger", recurringHandler.Trigger)
				}, func(r chi.Router) {
					r.Put("/{id}", recurringHandler.Update)
				}, func(r chi.Router) {
					r.Delete("/{id}", recurringHandler.Delete)
				})
			})

			r.Route("/quotes", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourceQuote, func(r chi.Router) {
					r.Get("/", quoteHandler.List)
					r.Get("/{id}", quoteHandler.Get)
				}, func(r chi.Router) {
					r.Post("/", quoteHandler.Create)
				}, func(r chi.Router) {
					r.Put("/{id}", quoteHandler.Update)
				}, func(r chi.Router) {
					r.Delete("/{id}", quoteHandler.Delete)
				})
				r.With(middleware.RequirePermission(cfg.Engine, "quote:send")).
					Post("/{id}/send", quoteHandler.Send)
				r.With(middleware.RequirePermission(cfg.Engine, "quote:accept")).
					Post("/{id}/accept", quoteHandler.Accept)
			})

			r.Route("/budgets", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourceBudget, func(r chi.Router) {
					r.Get("/", budgetHandler.List)
					r.Get("/{id}", budgetHandler.Get)
				}, func(r chi.Router) {
					r.Post("/", budgetHandler.Create)
				}, func(r chi.Router) {
					r.Put("/{id}", budgetHandler.Update)
				}, func(r chi.Router) {
					r.Delete("/{id}", budgetHandler.Delete)
				})
				r.With(middleware.RequirePermission(cfg.Engine, "scenario:read")).
					Get("/{id}/scenarios", budgetHandler.ListScenarios)
				r.With(middleware.RequirePermission(cfg.Engine, "scenario:create")).
					Post("/{id}/scenarios", budgetHandler.CreateScenario)
				r.With(middleware.RequirePermission(cfg.Engine, "scenario:delete")).
					Delete("/{id}/scenarios/{scenarioID}", budgetHandler.DeleteScenario)
			})

			r.Route("/members", func(r chi.Router) {
				r.With(middleware.RequirePermission(cfg.Engine, "member:read")).
					Get("/", memberHandler.List)
				r.With(middleware.RequirePermission(cfg.Engine, "member:invite")).
					Post("/", memberHandler.Invite)
				r.With(middleware.RequirePermission(cfg.Engine, "member:update")).
					Put("/{id}/role", memberHandler.ChangeRole)
				r.With(middleware.RequirePermission(cfg.Engine, "member:suspend")).
					Post("/{id}/suspend", memberHandler.Suspend)
				r.With(middleware.RequirePermission(cfg.Engine, "member:suspend")).
					Post("/{id}/restore", memberHandler.Restore)
				r.With(middleware.RequirePermission(cfg.Engine, "member:remove")).
					Delete("/{id}", memberHandler.Remove)
			})

			r.Route("/roles", func(r chi.Router) {
				r.With(middleware.RequirePermission(cfg.Engine, "role:read")).
					Get("/", roleHandler.List)
				r.With(middleware.RequirePermission(cfg.Engine, "role:update")).
					Put("/{id}/permissions", roleHandler.UpdateGrants)
			})

			r.Route("/credentials", func(r chi.Router) {
				requireResource(r, cfg.Engine, authz.ResourcePaymentCredential, func(r chi.Router) {
					r.Get("/", credentialHandler.List)
				}, func(r chi.Router) {
					r.Post("/", credentialHandler.Create)
				}, func(r chi.Router) {
					r.Put("/{id}", credentialHandler.Update)
				}, func(r chi.Router) {
					r.Delete("/{id}", credentialHandler.Delete)
				})
			})

			r.Route("/audit", func(r chi.Router) {
				r.Use(middleware.RequirePermission(cfg.Engine, "audit:read"))
				r.Get("/", auditHandler.List)
				r.Get("/{resource}/{id}", auditHandler.ForResource)
			})
		})
	})

	return &Router{r}
}

// requireResource wires the standard read/create/update/delete permission
// gates for one resource's routes.
func requireResource(r chi.Router, engine *authz.Engine, resource string, read, create, update, del func(chi.Router)) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(engine, resource+":"+authz.ActionRead))
		read(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(engine, resource+":"+authz.ActionCreate))
		create(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(engine, resource+":"+authz.ActionUpdate))
		update(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(engine, resource+":"+authz.ActionDelete))
		del(r)
	})
}

var _ http.Handler = (*Router)(nil)
