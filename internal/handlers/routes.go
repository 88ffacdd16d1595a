// File: internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-mechanic/internal/middleware"
	"github.com/iyunix/go-mechanic/internal/ratelimit"
)

// RouterDeps collects everything the HTTP surface is built from.
type RouterDeps struct {
	Diagnoses *DiagnosisHandler
	Providers *ProviderHandler
	Limiter   *ratelimit.TieredLimiter
	JWTSecret []byte
	Metrics   http.Handler
	Logger    Logger
}

// NewRouter wires routes and middleware. Only diagnosis submission is rate limited.
func NewRouter(d RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(d.Logger))
	r.Use(middleware.LoggingMiddleware(d.Logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewIdentityMiddleware(d.JWTSecret, d.Logger))

	submit := http.Handler(http.HandlerFunc(d.Diagnoses.CreateDiagnosis))
	if d.Limiter != nil {
		submit = middleware.RateLimitMiddleware(d.Limiter, d.Logger)(submit)
	}
	api.Handle("/diagnoses", submit).Methods(http.MethodPost)
	api.Handle("/diagnoses", middleware.RequireUser(http.HandlerFunc(d.Diagnoses.ListDiagnoses))).Methods(http.MethodGet)
	api.HandleFunc("/diagnoses/{id}", d.Diagnoses.GetDiagnosis).Methods(http.MethodGet)

	api.HandleFunc("/providers", d.Providers.ListProviders).Methods(http.MethodGet)
	api.Handle("/providers/{key}/test",
		middleware.RequireAdmin(d.Logger)(http.HandlerFunc(d.Providers.TestProvider))).Methods(http.MethodGet)
	api.HandleFunc("/providers/{key}/cost", d.Providers.EstimateCost).Methods(http.MethodGet)

	return r
}
