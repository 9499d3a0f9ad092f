// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package edge

import (
	"net/http"

	"github.com/edgebench/sigbench/internal/httpx"
	"github.com/prometheus/client_golang/prometheus"
)

type health struct {
	State string `json:"state"`
}

// AdminHandler serves the responder's health and recent messages, plus the
// Prometheus series from g when it is not nil.
//
//	GET /healthz  200 while running, 503 otherwise
//	GET /recent   recently published messages, oldest first
//	GET /metrics  Prometheus exposition
func AdminHandler(r *Responder, g prometheus.Gatherer) http.Handler {
	mux := httpx.NewRouter(g)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := r.State()
		status := http.StatusOK
		if st != Running {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, health{State: st.String()})
	})
	mux.Get("/recent", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, r.Recent())
	})
	return mux
}
