package httpserver

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appaudits "labsentinel/internal/application/audits"
	domai "labsentinel/internal/domain/ai"
	domain "labsentinel/internal/domain/audits"
	"labsentinel/internal/domain/procedures"
	"labsentinel/internal/middleware"
)

type Router struct {
	svc *appaudits.Service
}

func NewRouter(svc *appaudits.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Get("/procedures", r.wrap(r.handleListProcedures))
	mux.Get("/procedures/{id}", r.wrap(r.handleGetProcedure))

	mux.Route("/{tenant}", func(rt chi.Router) {
		rt.Post("/audits", r.wrap(r.handleRunAudit))
		rt.Get("/audits/latest", r.wrap(r.handleLatest))
		rt.Get("/audits/{id}", r.wrap(r.handleGet))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Delete("/cache", r.wrap(r.handleClearCache))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors onto HTTP statuses. InputError class is 400,
// incomplete audits are 502, cache misses and unknown ids 404.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, sql.ErrNoRows), errors.Is(err, domain.ErrNotFound),
			errors.Is(err, procedures.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrEmptyEvidence), errors.Is(err, domain.ErrEmptyChecklist),
			errors.Is(err, procedures.ErrMalformed):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrUpstreamFormat):
			http.Error(w, "audit incomplete: "+err.Error(), http.StatusBadGateway)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/{tenant}/audits
// Body: {"procedure_id": "...", "image_base64": "...", "content_type": "image/png"}
// Runs the audit synchronously; the engine itself completes in microseconds
// and replays from cache without touching either model.
func (r *Router) handleRunAudit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		ProcedureID string `json:"procedure_id"`
		ImageBase64 string `json:"image_base64"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmptyEvidence, err)
	}
	if body.ProcedureID == "" {
		return fmt.Errorf("%w: procedure_id is required", procedures.ErrMalformed)
	}
	evidence, err := base64.StdEncoding.DecodeString(body.ImageBase64)
	if err != nil {
		return fmt.Errorf("%w: image_base64 is not valid base64", domain.ErrEmptyEvidence)
	}

	result, err := r.svc.RunAudit(req.Context(), appaudits.RunAuditCommand{
		TenantID:    tenant,
		ProcedureID: body.ProcedureID,
		Evidence:    evidence,
		ContentType: body.ContentType,
	})
	if err != nil {
		middleware.IncrementAuditsFailed()
		return err
	}
	middleware.IncrementAudits()
	if result.Cached {
		middleware.IncrementCacheHits()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// GET /v1/{tenant}/audits/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), tenant, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/audits/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	rec, err := r.svc.Get(req.Context(), tenant, domain.AuditID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), tenant, days)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// DELETE /v1/{tenant}/cache
// The only way a cache entry is ever destroyed.
func (r *Router) handleClearCache(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := r.svc.ClearCache(req.Context(), tenant); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

// GET /v1/procedures
func (r *Router) handleListProcedures(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(r.svc.Catalog.List())
}

// GET /v1/procedures/{id}
func (r *Router) handleGetProcedure(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	spec, err := r.svc.Catalog.Get(id)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(spec)
}
