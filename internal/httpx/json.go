// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRouter returns a chi router with panic recovery and, when g is not nil,
// the Prometheus exposition endpoint mounted at /metrics.
func NewRouter(g prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if g != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			g,
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		))
	}
	return r
}
