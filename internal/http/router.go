package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/humanize/server/internal/auth"
	"github.com/humanize/server/internal/http/handlers"
	"github.com/humanize/server/internal/middleware"
	"github.com/humanize/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	regHandler *handlers.RegistrationHandler,
	tokens *auth.TokenService,
	userRepo repo.UserRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/token/refresh", authHandler.HandleRefresh)
		r.Post("/password/reset", authHandler.HandleForgotPassword)
		r.Post("/password/reset/confirm", authHandler.HandleResetPassword)

		// Protected auth routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(tokens, userRepo))
			r.Get("/user", authHandler.HandleMe)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/password/change", authHandler.HandleChangePassword)
		})
	})

	// Registration workflow (all protected)
	r.Route("/registration", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(tokens, userRepo))

		r.Post("/step1", regHandler.HandleStep1)
		r.Get("/step1", regHandler.HandleGetStep1)
		r.Post("/step2", regHandler.HandleStep2)
		r.Get("/step2", regHandler.HandleGetStep2)
		r.Post("/step2/modeling", regHandler.HandleStep2Modeling)
		r.Get("/step2/modeling", regHandler.HandleGetStep2Modeling)
		r.Post("/step3", regHandler.HandleStep3)
		r.Get("/step3", regHandler.HandleGetStep3)
		r.Post("/step4", regHandler.HandleStep4)
		r.Get("/step4", regHandler.HandleGetStep4)

		r.Post("/phone/send", regHandler.HandleSendOTP)
		r.Post("/phone/verify", regHandler.HandleVerifyOTP)

		r.Get("/status", regHandler.HandleStatus)
	})

	return r
}
