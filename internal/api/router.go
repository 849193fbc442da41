/**
 * @description
 * This file sets up the HTTP router for the back-office service using the
 * `chi` routing library. It defines all the API routes and applies necessary
 * middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The routing library.
 * - github.com/go-chi/cors: CORS middleware for the browser UI.
 * - The service's internal packages for handlers and middleware.
 */
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/harborbank/backoffice/internal/config"
	"github.com/harborbank/backoffice/pkg/middleware"
)

// NewRouter creates and configures a new HTTP router.
func NewRouter(cfg *config.Config, provision *ProvisionHandler, customers *CustomerHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Self-signup is public; the identity provider enforces credentials.
	r.Post("/signup", provision.CreateCustomer)

	// Back-office routes require a staff token.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(cfg.JWTSecret, "admin", "teller"))

		r.Route("/admin/customers", func(r chi.Router) {
			r.Post("/", provision.CreateCustomer)
			r.Get("/{id}", customers.GetCustomer)
		})
	})

	return r
}
