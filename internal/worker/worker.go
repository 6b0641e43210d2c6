// Package worker provides async consulta processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punto-financiamiento/informes/internal/bureau"
	"github.com/punto-financiamiento/informes/internal/bus"
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/evaluator"
)

// ReportFetcher retrieves a bureau report for a document.
// *bureau.Client satisfies this.
type ReportFetcher interface {
	FetchReport(ctx context.Context, tipo domain.DocumentType, numero string) (*bureau.Report, error)
}

// Worker processes consultas asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	fetcher   ReportFetcher
	processor *evaluator.Processor

	// reportTTL is how long fetched reports stay cached. 0 disables caching.
	reportTTL time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, cache domain.Cache, fetcher ReportFetcher, processor *evaluator.Processor, reportTTL time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       eventBus,
		repo:      repo,
		cache:     cache,
		fetcher:   fetcher,
		processor: processor,
		reportTTL: reportTTL,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicConsultaSolicitada, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicConsultaSolicitada, func(ctx context.Context, msg *domain.Message) error {
		return w.processConsulta(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicConsultaSolicitada,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processConsulta(ctx, msg.TenantID, msg)
}

// processConsulta runs one consulta through the full pipeline.
func (w *Worker) processConsulta(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	cMsg, err := bus.ParseConsultaMessage(msg)
	if err != nil {
		slog.Error("failed to parse consulta message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if cMsg.TenantID != "" {
		tenantID = cMsg.TenantID
	}

	traceID := cMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing consulta",
		"numero", cMsg.Numero,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	tipo, numero, err := bureau.NormalizeDocument(cMsg.TipoDocumento, cMsg.Numero)
	if err != nil {
		w.publishError(ctx, tenantID, cMsg, err)
		return err
	}

	report, err := w.getReport(ctx, tenantID, tipo, numero)
	if err != nil {
		slog.Error("bureau fetch failed",
			"numero", numero,
			"tenant_id", tenantID,
			"error", err,
		)
		w.publishError(ctx, tenantID, cMsg, err)
		return err
	}

	evaluation := w.processor.Process(ctx, &evaluator.Input{
		TenantID:      tenantID,
		TraceID:       traceID,
		TipoDocumento: tipo,
		Numero:        numero,
		Report:        report.Informe,
		FechaInforme:  report.Fecha,
		StartTime:     start,
	})

	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, tenantID, evaluation); err != nil {
			slog.Error("failed to save evaluation",
				"numero", numero,
				"error", err,
			)
		}

		consultaID := cMsg.ConsultaID
		if consultaID == "" {
			consultaID = uuid.New().String()
		}
		consulta := &domain.Consulta{
			ID:             consultaID,
			TipoDocumento:  tipo,
			Numero:         numero,
			NombreCompleto: evaluation.NombreCompleto,
			Riesgo:         evaluation.Riesgo,
			ScoringAPI:     evaluation.ScoringAPI,
			EvaluationID:   evaluation.ID,
			Usuario:        cMsg.Usuario,
			CreatedAt:      time.Now().UTC(),
		}
		if err := w.repo.SaveConsulta(ctx, tenantID, consulta); err != nil {
			slog.Error("failed to save consulta",
				"numero", numero,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(evaluation)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicConsultaCompletada, resultPayload); err != nil {
		slog.Error("failed to publish result",
			"numero", numero,
			"error", err,
		)
	}

	if evaluator.ShouldAlert(evaluation) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlerta, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"numero", numero,
				"error", err,
			)
		}
	}

	slog.Info("consulta processed",
		"numero", numero,
		"tenant_id", tenantID,
		"riesgo", evaluation.Riesgo,
		"status", evaluation.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// getReport returns a cached report when available, otherwise fetches from
// the bureau and caches the result.
func (w *Worker) getReport(ctx context.Context, tenantID string, tipo domain.DocumentType, numero string) (*bureau.Report, error) {
	if w.cache != nil && w.reportTTL > 0 {
		cached, err := w.cache.GetReport(ctx, tenantID, tipo, numero)
		if err == nil && cached != nil {
			return &bureau.Report{Informe: cached.Informe, Fecha: cached.Fecha}, nil
		}
	}

	report, err := w.fetcher.FetchReport(ctx, tipo, numero)
	if err != nil {
		return nil, err
	}

	if w.cache != nil && w.reportTTL > 0 {
		_ = w.cache.SetReport(ctx, tenantID, &domain.CachedReport{
			TipoDocumento: tipo,
			Numero:        numero,
			Fecha:         report.Fecha,
			Informe:       report.Informe,
		}, w.reportTTL)
	}

	return report, nil
}

func (w *Worker) publishError(ctx context.Context, tenantID string, cMsg *bus.ConsultaMessage, cause error) {
	payload := bus.ErrorPayload(cMsg.ConsultaID, cMsg.Numero, cause)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicConsultaError, payload); err != nil {
		slog.Error("failed to publish error",
			"numero", cMsg.Numero,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
