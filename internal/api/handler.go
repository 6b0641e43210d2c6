package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/punto-financiamiento/informes/internal/bureau"
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/evaluator"
	"github.com/punto-financiamiento/informes/internal/rules"
)

// ReportFetcher retrieves a bureau report for a document.
// *bureau.Client satisfies this.
type ReportFetcher interface {
	FetchReport(ctx context.Context, tipo domain.DocumentType, numero string) (*bureau.Report, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	processor *evaluator.Processor
	fetcher   ReportFetcher
	version   string

	// reportTTL is how long fetched reports stay cached. 0 disables caching.
	reportTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, processor *evaluator.Processor, fetcher ReportFetcher, version string, reportTTL time.Duration) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		processor: processor,
		fetcher:   fetcher,
		version:   version,
		reportTTL: reportTTL,
	}
}

// ConsultaRequest is the request body for POST /api/informes.
type ConsultaRequest struct {
	TipoDocumento string `json:"tipoDocumento"`
	Numero        string `json:"numero"`
}

// Consulta handles POST /api/informes: fetches the bureau report for one
// document and runs the full classification pipeline synchronously.
func (h *Handler) Consulta(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ConsultaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	resp, err := h.runConsulta(ctx, tenantID, traceID, GetUserEmail(ctx), req, start)
	if err != nil {
		writeConsultaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// LoteRequest is the request body for POST /api/informes/lote. One document
// type covers the whole batch.
type LoteRequest struct {
	TipoDocumento string   `json:"tipoDocumento"`
	Numeros       []string `json:"numeros"`
}

// LoteItemResult is one entry of the batch response. Exactly one of
// Resultado or Error is set.
type LoteItemResult struct {
	Numero    string                   `json:"numero"`
	Resultado *domain.ConsultaResponse `json:"resultado,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// maxLoteSize bounds one batch request.
const maxLoteSize = 100

// ConsultaLote handles POST /api/informes/lote. Admin only: each document
// is a billable bureau call.
func (h *Handler) ConsultaLote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if !IsAdmin(ctx) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "Operación restringida a administradores",
		})
		return
	}

	var req LoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Numeros) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "numeros is required",
		})
		return
	}
	if len(req.Numeros) > maxLoteSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch too large",
		})
		return
	}

	usuario := GetUserEmail(ctx)
	results := make([]LoteItemResult, 0, len(req.Numeros))
	for _, numero := range req.Numeros {
		doc := ConsultaRequest{TipoDocumento: req.TipoDocumento, Numero: numero}
		resp, err := h.runConsulta(ctx, tenantID, traceID, usuario, doc, time.Now())
		if err != nil {
			results = append(results, LoteItemResult{Numero: numero, Error: err.Error()})
			continue
		}
		results = append(results, LoteItemResult{Numero: numero, Resultado: resp})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resultados": results,
		"total":      len(results),
		"duracionMs": time.Since(start).Milliseconds(),
	})
}

// runConsulta is the shared pipeline behind the single and batch endpoints.
func (h *Handler) runConsulta(ctx context.Context, tenantID, traceID, usuario string, req ConsultaRequest, start time.Time) (*domain.ConsultaResponse, error) {
	tipo, numero, err := bureau.NormalizeDocument(req.TipoDocumento, req.Numero)
	if err != nil {
		return nil, err
	}

	report, err := h.getReport(ctx, tenantID, tipo, numero)
	if err != nil {
		return nil, err
	}

	evaluation := h.processor.Process(ctx, &evaluator.Input{
		TenantID:      tenantID,
		TraceID:       traceID,
		TipoDocumento: tipo,
		Numero:        numero,
		Report:        report.Informe,
		FechaInforme:  report.Fecha,
		StartTime:     start,
	})

	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, tenantID, evaluation); err != nil {
			slog.Error("failed to save evaluation", "error", err)
		}

		consulta := &domain.Consulta{
			ID:             uuid.New().String(),
			TipoDocumento:  tipo,
			Numero:         numero,
			NombreCompleto: evaluation.NombreCompleto,
			Riesgo:         evaluation.Riesgo,
			ScoringAPI:     evaluation.ScoringAPI,
			EvaluationID:   evaluation.ID,
			Usuario:        usuario,
			CreatedAt:      time.Now().UTC(),
		}
		if err := h.repo.SaveConsulta(ctx, tenantID, consulta); err != nil {
			slog.Error("failed to save consulta", "error", err)
		}
	}

	if h.bus != nil && evaluator.ShouldAlert(evaluation) {
		payload, _ := json.Marshal(evaluation)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAlerta, payload); err != nil {
			slog.Error("failed to publish alert", "numero", numero, "error", err)
		}
	}

	return evaluation.ToResponse(), nil
}

// getReport returns a cached report when available, otherwise fetches from
// the bureau and caches the result.
func (h *Handler) getReport(ctx context.Context, tenantID string, tipo domain.DocumentType, numero string) (*bureau.Report, error) {
	if h.cache != nil && h.reportTTL > 0 {
		cached, err := h.cache.GetReport(ctx, tenantID, tipo, numero)
		if err == nil && cached != nil {
			return &bureau.Report{Informe: cached.Informe, Fecha: cached.Fecha}, nil
		}
	}

	report, err := h.fetcher.FetchReport(ctx, tipo, numero)
	if err != nil {
		return nil, err
	}

	if h.cache != nil && h.reportTTL > 0 {
		_ = h.cache.SetReport(ctx, tenantID, &domain.CachedReport{
			TipoDocumento: tipo,
			Numero:        numero,
			Fecha:         report.Fecha,
			Informe:       report.Informe,
		}, h.reportTTL)
	}

	return report, nil
}

// writeConsultaError maps pipeline errors to the bureau error contract.
func writeConsultaError(w http.ResponseWriter, err error) {
	var apiErr *bureau.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, apiErr)
		return
	}

	slog.Error("consulta failed", "error", err)
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error": "No se pudo obtener el informe",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// GetConsulta retrieves a consulta audit record by ID.
func (h *Handler) GetConsulta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	consultaID := chi.URLParam(r, "id")

	if consultaID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "consulta id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	consulta, err := h.repo.GetConsulta(ctx, tenantID, consultaID)
	if err != nil {
		slog.Error("failed to get consulta", "id", consultaID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "consulta not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, consulta)
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /api/rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /api/rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	// Create rule config (global tenant)
	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /api/rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// Load rules from database (global rules)
	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	// Reload into engine
	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
