// Package evaluator runs the full classification pipeline for one bureau
// report: signal extraction, tier classification, the medium-risk scorer,
// the situation-5 offer and the advisory override rules.
package evaluator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/extract"
	"github.com/punto-financiamiento/informes/internal/offer"
	"github.com/punto-financiamiento/informes/internal/rules"
	"github.com/punto-financiamiento/informes/internal/scoring"
)

const engineVersion = "informes-1.0"

// RuleEvaluator is the subset of the rules engine the processor needs.
type RuleEvaluator interface {
	EvaluateAll(ctx context.Context, input *rules.EvaluateInput) ([]domain.RuleResult, error)
	RulesCount() int
}

// Processor orchestrates one evaluation end to end. The rules engine is
// optional; without it evaluations carry no advisory results and the status
// is always OK.
type Processor struct {
	offers *offer.Calculator
	rules  RuleEvaluator

	// ConsultaWindow is the lookback in seconds fed to velocity rules.
	ConsultaWindow int
}

// NewProcessor creates a Processor.
func NewProcessor(offers *offer.Calculator, ruleEngine RuleEvaluator, consultaWindow int) *Processor {
	if offers == nil {
		offers = offer.NewCalculator(nil)
	}
	return &Processor{
		offers:         offers,
		rules:          ruleEngine,
		ConsultaWindow: consultaWindow,
	}
}

// Input carries one report through the pipeline.
type Input struct {
	TenantID      string
	TraceID       string
	TipoDocumento domain.DocumentType
	Numero        string
	Report        domain.RawReport

	// FechaInforme is the report date as returned by the bureau.
	FechaInforme string

	// StartTime marks when the consulta entered the system.
	StartTime time.Time
}

// Process classifies a report. The tier is always computed; the medium-risk
// scorer runs only for the MEDIO tier and the situation-5 calculator runs
// regardless of tier, each with its own gates. Rule failures set the ALERTA
// status but never change any verdict.
func (p *Processor) Process(ctx context.Context, input *Input) *domain.Evaluation {
	extractStart := time.Now()
	signals := extract.Signals(input.Report)
	extractMs := time.Since(extractStart).Milliseconds()

	scoreStart := time.Now()
	riesgo := scoring.Classify(signals.ScoringBureau)

	eval := &domain.Evaluation{
		ID:             uuid.New().String(),
		TenantID:       input.TenantID,
		TipoDocumento:  input.TipoDocumento,
		Numero:         input.Numero,
		NombreCompleto: signals.NombreCompleto,
		Riesgo:         riesgo,
		ScoringAPI:     signals.ScoringBureau,
		FechaInforme:   input.FechaInforme,
		Timestamp:      time.Now().UTC(),
		Status:         domain.StatusOK,
	}

	if riesgo == domain.RiskMedio {
		eval.RiesgoInterno = scoring.EvaluateMediumRisk(signals)
	}

	eval.Situacion5 = p.offers.Calculate(signals)
	scoreMs := time.Since(scoreStart).Milliseconds()

	rulesEvaluated := 0
	if p.rules != nil && p.rules.RulesCount() > 0 {
		var scoreInterno *float64
		if eval.RiesgoInterno != nil {
			scoreInterno = &eval.RiesgoInterno.ScoreInterno
		}

		results, err := p.rules.EvaluateAll(ctx, &rules.EvaluateInput{
			TenantID:       input.TenantID,
			Numero:         input.Numero,
			Signals:        signals,
			Riesgo:         riesgo,
			ScoreInterno:   scoreInterno,
			ConsultaWindow: p.ConsultaWindow,
			Informe:        input.Report,
		})
		if err == nil {
			eval.RuleResults = results
			rulesEvaluated = len(results)
			if hasFailure(results) {
				eval.Status = domain.StatusAlerta
			}
		}
	}

	startTime := input.StartTime
	if startTime.IsZero() {
		startTime = extractStart
	}

	eval.Metadata = domain.EvaluationMetadata{
		TraceID:        input.TraceID,
		ExtractMs:      extractMs,
		ScoreMs:        scoreMs,
		TotalMs:        time.Since(startTime).Milliseconds(),
		RulesEvaluated: rulesEvaluated,
		EngineVersion:  engineVersion,
	}

	return eval
}

func hasFailure(results []domain.RuleResult) bool {
	for _, r := range results {
		if r.SubRuleRef == domain.RuleOutcomeFail {
			return true
		}
	}
	return false
}

// ShouldAlert returns true if the evaluation carries a rule failure.
func ShouldAlert(eval *domain.Evaluation) bool {
	return eval.Status == domain.StatusAlerta
}

// GetReasons extracts human-readable reasons from an evaluation.
func GetReasons(eval *domain.Evaluation) []string {
	var reasons []string
	for _, r := range eval.RuleResults {
		if r.SubRuleRef == domain.RuleOutcomeFail || r.SubRuleRef == domain.RuleOutcomeReview {
			if r.Reason != "" {
				reasons = append(reasons, r.Reason)
			}
		}
	}
	return reasons
}
