package http

import (
	"net/http"

	"github.com/go-auth-core/internal/application/account"
	"github.com/go-auth-core/internal/application/credential"
	"github.com/go-auth-core/internal/application/extlogin"
	"github.com/go-auth-core/internal/application/otp"
	"github.com/go-auth-core/internal/application/session"
	"github.com/go-auth-core/internal/config"
	"github.com/go-auth-core/internal/domain"
	jwtinfra "github.com/go-auth-core/internal/infrastructure/jwt"
	"github.com/go-auth-core/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo       AccountRepository
	SessionRepo       SessionRepository
	OtpRepo           OtpRepository
	ExternalLoginRepo ExternalLoginRepository
	Blacklist         BlacklistStore
	Publisher         EventPublisher
	JWTProvider       *jwtinfra.Provider
	GoogleVerifier    GoogleVerifier
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.Blacklist)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		OtpRepo:     deps.OtpRepo,
		Publisher:   deps.Publisher,
		MaxAttempts: cfg.MaxOtpAttempts,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		Publisher:   deps.Publisher,
		Otp:         otpSvc,
		OtpExpiry:   cfg.OtpExpiry,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		AccountRepo:     deps.AccountRepo,
		SessionRepo:     deps.SessionRepo,
		Blacklist:       deps.Blacklist,
		Signer:          deps.JWTProvider,
		SessionExpiry:   cfg.SessionExpiry,
		BlacklistTTL:    cfg.JWTExpiry + cfg.BlacklistMargin,
		MaxFailedLogins: cfg.MaxFailedLogins,
		LockoutDuration: cfg.LockoutDuration,
	})
	credentialSvc := credential.NewService(credential.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		Otp:         otpSvc,
		OtpExpiry:   cfg.OtpExpiry,
	})
	extloginSvc := extlogin.NewService(extlogin.ServiceDeps{
		LoginRepo:                 deps.ExternalLoginRepo,
		AccountRepo:               deps.AccountRepo,
		Verifier:                  deps.GoogleVerifier,
		Sessions:                  sessionSvc,
		Signer:                    deps.JWTProvider,
		AllowUnlinkLastCredential: cfg.AllowUnlinkLastCredential,
	})

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(accountSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	pwH := handler.NewPasswordRecoveryHandler(credentialSvc)
	verifH := handler.NewVerificationHandler(accountSvc)
	extH := handler.NewExternalLoginHandler(extloginSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Check)
		r.With(sensitiveRL.Limit).Post("/accounts", accountH.Create)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/password-recovery/request", pwH.Request)
		r.With(sensitiveRL.Limit).Post("/password-recovery/confirm", pwH.Confirm)
		r.With(sensitiveRL.Limit).Post("/external-logins/google", extH.LoginWithGoogle)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.List)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Delete("/sessions/{id}", sessionH.Revoke)

			r.Post("/password-recovery/change-password", pwH.ChangePassword)

			r.Put("/accounts/contact", accountH.UpdateContact)

			r.Post("/verification/request", verifH.Request)
			r.Post("/verification/confirm", verifH.Confirm)

			r.Get("/external-logins", extH.List)
			r.Post("/external-logins", extH.Link)
			r.Delete("/external-logins/{provider}", extH.Unlink)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))

				r.Get("/accounts/{id}", accountH.Get)
				r.Delete("/accounts/{id}", accountH.Delete)
				r.Put("/accounts/{id}/status", accountH.SetStatus)
				r.Put("/accounts/{id}/verification", accountH.SetVerification)
				r.Post("/accounts/{id}/roles", accountH.AssignRole)
			})
		})
	})

	return r
}
