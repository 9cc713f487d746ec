package http_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/providers"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/BearBump/FleetSync/internal/services/syncer"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Service interface {
	RunSync(ctx context.Context, ownerID string) (models.SyncResult, error)
	GetShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error)
	GetAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error)
	TrackedToday(ctx context.Context, ownerID string) ([]string, error)
}

// ProviderProbe is implemented by syncer.Syncer.
type ProviderProbe interface {
	TestProvider(ctx context.Context, name string) (int, error)
	ProviderStatuses() map[string]syncer.ProviderStatus
}

// Check is one readiness probe (postgres, redis, ...).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Options struct {
	Service     Service
	Probe       ProviderProbe
	Providers   []providers.Status
	Alerts      http.Handler // websocket hub, optional
	Checks      []Check
	SwaggerPath string
	Version     string
}

type API struct {
	opts Options
}

func New(opts Options) *API {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &API{opts: opts}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", a.health)
	r.Get("/readyz", a.ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/owners/{ownerID}/sync", a.runSync)
		r.Get("/owners/{ownerID}/shipments", a.getShipments)
		r.Get("/owners/{ownerID}/alerts", a.getAlerts)
		r.Get("/owners/{ownerID}/tracked-today", a.trackedToday)
		r.Get("/providers/status", a.providersStatus)
		r.Get("/providers/{provider}/test", a.testProvider)
	})

	if a.opts.Alerts != nil {
		r.Get("/ws/alerts", a.opts.Alerts.ServeHTTP)
	}

	if a.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, a.opts.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(a.opts.SwaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), map[string]string{"error": err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, models.ErrOwnerRequired):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrSyncTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	enabled := 0
	for _, p := range a.opts.Providers {
		if p.Enabled {
			enabled++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"service":           "fleetsync",
		"version":           a.opts.Version,
		"platform":          runtime.GOOS + "/" + runtime.GOARCH,
		"providers_enabled": enabled,
		"time":              time.Now().UTC(),
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range a.opts.Checks {
		if err := c.Ping(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runSync: неуспешная синхронизация (timeout, persistence) всё равно отдаёт SyncResult.
func (a *API) runSync(w http.ResponseWriter, r *http.Request) {
	res, err := a.opts.Service.RunSync(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		if errors.Is(err, models.ErrSyncTimeout) || errors.Is(err, models.ErrPersistence) {
			writeJSON(w, statusCode(err), res)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getShipments(w http.ResponseWriter, r *http.Request) {
	out, err := a.opts.Service.GetShipments(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": out, "count": len(out)})
}

func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	out, err := a.opts.Service.GetAlerts(r.Context(), chi.URLParam(r, "ownerID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out, "count": len(out)})
}

func (a *API) trackedToday(w http.ResponseWriter, r *http.Request) {
	out, err := a.opts.Service.TrackedToday(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":          time.Now().UTC().Format("2006-01-02"),
		"shipment_ids": out,
		"count":        len(out),
	})
}

type providerStatusView struct {
	providers.Status
	LastSync *syncer.ProviderStatus `json:"last_sync,omitempty"`
}

func (a *API) providersStatus(w http.ResponseWriter, r *http.Request) {
	var last map[string]syncer.ProviderStatus
	if a.opts.Probe != nil {
		last = a.opts.Probe.ProviderStatuses()
	}
	out := make([]providerStatusView, 0, len(a.opts.Providers))
	for _, p := range a.opts.Providers {
		v := providerStatusView{Status: p}
		if st, ok := last[p.Name]; ok {
			v.LastSync = &st
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (a *API) testProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if a.opts.Probe == nil {
		writeError(w, errors.Wrap(models.ErrConfiguration, "provider test is not available"))
		return
	}
	n, err := a.opts.Probe.TestProvider(r.Context(), name)
	if err != nil {
		writeJSON(w, statusCode(err), map[string]any{"provider": name, "ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": name, "ok": true, "devices": n})
}
