package bootstrap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finswitch/finswitch/config"
	"github.com/finswitch/finswitch/core/link"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initHTTPServer builds the operational listener: metrics scrape endpoint,
// liveness probe, and read-only link and channel status.
func (a *App) initHTTPServer(cfg config.MetricsConfig) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle(cfg.Path, promhttp.Handler())
	r.Get("/healthz", a.handleHealth)
	r.Get("/links", a.handleLinks)
	r.Get("/channels", a.handleChannels)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// handleHealth reports ok while at least one link is connected; degraded
// otherwise. The process stays up either way so operators can inspect it.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := 0
	for _, l := range a.Links {
		if l.Manager.State() == link.StateConnected {
			connected++
		}
	}

	status := "ok"
	code := http.StatusOK
	if connected == 0 && len(a.Links) > 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":          status,
		"links_connected": connected,
		"links_total":     len(a.Links),
	})
}

func (a *App) handleLinks(w http.ResponseWriter, r *http.Request) {
	statuses := make([]link.Status, 0, len(a.Links))
	for _, l := range a.Links {
		statuses = append(statuses, l.Manager.Status())
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (a *App) handleChannels(w http.ResponseWriter, r *http.Request) {
	type channelInfo struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Vendor string `json:"vendor"`
		Active bool   `json:"active"`
		Fields int    `json:"fields"`
	}

	out := make([]channelInfo, 0, a.Registry.Len())
	for _, id := range a.Registry.IDs() {
		resolved, ok := a.Registry.Get(id)
		if !ok {
			continue
		}
		out = append(out, channelInfo{
			ID:     resolved.Channel.ID,
			Name:   resolved.Channel.Name,
			Type:   resolved.Channel.Type,
			Vendor: resolved.Channel.Vendor,
			Active: resolved.Channel.Active,
			Fields: len(resolved.Tree.ByID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
