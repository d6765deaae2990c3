/**
 * @description
 * This file sets up the HTTP router for the bill-payment service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware for authentication, logging, and panic recovery.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BillPayRoutes creates and returns a new router for the bill-payment service.
func BillPayRoutes(h *BillPayHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(jwksURL))

		// Catalog and policy endpoints
		r.Get("/providers", h.ListProvidersHandler)
		r.Get("/providers/{providerID}/plans", h.ListPlansHandler)
		r.Get("/policy", h.GetPolicyHandler)

		// Payment flow endpoints
		r.Post("/initiate", h.InitiateHandler)
		r.Post("/{transactionID}/confirm", h.ConfirmHandler)
		r.Post("/{transactionID}/cancel", h.CancelHandler)
		r.Get("/{transactionID}", h.GetTransactionHandler)

		// Beneficiary management endpoints
		r.Get("/beneficiaries", h.ListBeneficiariesHandler)
		r.Post("/beneficiaries", h.CreateBeneficiaryHandler)
		r.Put("/beneficiaries/{beneficiaryID}", h.UpdateBeneficiaryHandler)
		r.Delete("/beneficiaries/{beneficiaryID}", h.DeleteBeneficiaryHandler)
	})

	return r
}
