package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nischald42-create/aquabank/internal/auth"
)

// NewRouter builds the full route table. Everything under /api/v1 requires
// a bearer token; everything under /api/v1/admin additionally requires the
// admin role, verified server-side on every request.
func NewRouter(h *Handler, a auth.Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.Use(Observe)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(Authenticate(a))

	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods("POST")
	apiV1.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}/transactions", h.GetTransactions).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}/statement", h.GetStatement).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}/payment-code", h.GetPaymentCode).Methods("GET")

	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(RequireRole(auth.RoleAdmin))
	admin.HandleFunc("/accounts", h.AdminCreateAccount).Methods("POST")
	admin.HandleFunc("/accounts", h.AdminListAccounts).Methods("GET")
	admin.HandleFunc("/accounts/{id}", h.AdminCloseAccount).Methods("DELETE")
	admin.HandleFunc("/accounts/{id}/adjust", h.AdminAdjustBalance).Methods("POST")
	admin.HandleFunc("/credentials/reset", h.AdminResetCredentials).Methods("POST")

	return r
}
