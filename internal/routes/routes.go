package routes

import (
	"github.com/comunication-ltd/credcore/internal/auth"
	"github.com/comunication-ltd/credcore/internal/handlers"
	"github.com/comunication-ltd/credcore/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	customerHandler *handlers.CustomerHandler,
	tokenManager *auth.TokenManager,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes, rate limited per IP: these are the guessing surface.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/forgot-password", authHandler.ForgotPassword)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/reset-password", authHandler.ResetPassword)

	// Protected routes, authentication required.
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Post("/auth/change-password", authHandler.ChangePassword)

		r.Get("/customers", customerHandler.List)
		r.Post("/customers", customerHandler.Create)
	})
}
