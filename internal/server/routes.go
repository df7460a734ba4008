package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New wires the HTTP routes.
func New(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/validations", h.RequestValidation).Methods(http.MethodPost)
	v1.HandleFunc("/validations", h.ActiveValidations).Methods(http.MethodGet)
	v1.HandleFunc("/validations/{id}", h.Status).Methods(http.MethodGet)
	v1.HandleFunc("/validations/{id}/votes", h.SubmitVote).Methods(http.MethodPost)
	v1.HandleFunc("/players/{id}/trust", h.PlayerTrust).Methods(http.MethodGet)
	v1.HandleFunc("/trust/leaderboard", h.TrustLeaderboard).Methods(http.MethodGet)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return logging(h, r)
}

func logging(h *Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
