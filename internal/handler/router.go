package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all routes onto a gorilla/mux router. metricsHandler
// serves the prometheus scrape endpoint.
func NewRouter(h *Handler, metricsHandler http.Handler, middlewares ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.HandleFunc("/api/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/api/accounts", h.ListAccounts).Methods("GET")
	r.HandleFunc("/api/accounts/{identifier}", h.GetAccount).Methods("GET")
	r.HandleFunc("/api/transfers", h.CreateTransfer).Methods("POST")
	r.HandleFunc("/api/transfers", h.ListTransfers).Methods("GET")
	r.HandleFunc("/api/transfers/{identifier}", h.ListAccountTransfers).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", metricsHandler).Methods("GET")

	return r
}
