package httpx

import (
	"encoding/json"
	"net/http"

	"loopgate/internal/config"
	"loopgate/internal/http/handlers"
	middlewarex "loopgate/internal/http/middleware"
	"loopgate/internal/services/delivery"
	"loopgate/internal/services/reconcile"
	"loopgate/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDependencies holds everything the HTTP surface needs, wired
// explicitly by the composition root.
type RouterDependencies struct {
	Config      config.Cfg
	Reconcile   *reconcile.Service
	Deliverer   *delivery.Deliverer
	Credentials repositories.CredentialRepository
	Resolver    reconcile.CredentialResolver
	Payments    repositories.PaymentRepository
}

// NewRouter builds the HTTP router.
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Operator routes.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Config.Sec.AdminToken))
		r.Post("/merchants", handlers.OnboardMerchant(deps.Credentials, deps.Config.Sec.AESKey))
	})

	// Orchestrator-facing payment operations.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.BearerAuth(deps.Config.Sec.APIToken))
		r.Post("/orders", handlers.CreateOrder(deps.Reconcile, deps.Payments))
		r.Post("/orders/{orderID}/capture", handlers.CaptureOrder(deps.Reconcile, deps.Payments))
		r.Post("/refunds", handlers.Refund(deps.Reconcile))
		r.Get("/orders/{orderID}", handlers.QueryStatus(deps.Reconcile, deps.Payments))
		r.Get("/payments", handlers.ListPayments(deps.Payments))
	})

	// Gateway checkout confirmations, validated by inbound signature.
	r.Post("/callbacks/{merchantID}", handlers.GatewayCallback(
		deps.Resolver, deps.Reconcile, deps.Deliverer, deps.Payments,
	))

	return r
}
