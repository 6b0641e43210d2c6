package domain

import (
	"time"
)

// Evaluation is the complete result of classifying one bureau report.
type Evaluation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	TipoDocumento DocumentType `json:"tipoDocumento"`
	Numero        string       `json:"numero"`

	NombreCompleto string `json:"nombreCompleto"`

	// Riesgo is the tier derived from the bureau scoring.
	Riesgo RiskTier `json:"riesgo"`

	// ScoringAPI is the parsed bureau scoring, nil when the report carried
	// none (in which case Riesgo defaults to MEDIO).
	ScoringAPI *float64 `json:"scoringApi"`

	// RiesgoInterno is present only when Riesgo == MEDIO.
	RiesgoInterno *MediumRiskResult `json:"riesgoInterno,omitempty"`

	// Situacion5 is present only when the offer calculator's own gate
	// passed. It is independent of Riesgo.
	Situacion5 *Situacion5Offer `json:"situacion5,omitempty"`

	// RuleResults holds the advisory override-rule outcomes, if any rules
	// were loaded.
	RuleResults []RuleResult `json:"ruleResults,omitempty"`

	// Status is StatusAlerta when any override rule failed, StatusOK
	// otherwise. Advisory only: the fields above are never changed by rules.
	Status string `json:"status"`

	FechaInforme string    `json:"fechaInforme,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	Metadata EvaluationMetadata `json:"metadata"`
}

// Evaluation status constants
const (
	StatusOK     = "OK"
	StatusAlerta = "ALERTA"
)

// MediumRiskResult is the internal verdict produced for MEDIO-tier subjects.
type MediumRiskResult struct {
	Estado       string             `json:"estado"` // APROBADO, REVISION, RECHAZADO
	ScoreInterno float64            `json:"scoreInterno"`
	Motivos      []string           `json:"motivos"`
	Metricas     MediumRiskMetricas `json:"metricas"`
}

// Medium-risk verdict states
const (
	EstadoAprobado  = "APROBADO"
	EstadoRevision  = "REVISION"
	EstadoRechazado = "RECHAZADO"
)

// MediumRiskMetricas snapshots every input the scorer saw plus the derived
// ratios. UsoCapacidad and DTI are nil when their denominator is zero.
type MediumRiskMetricas struct {
	CapacidadTotal            float64  `json:"capacidadTotal"`
	CompromisoMensual         float64  `json:"compromisoMensual"`
	IngresoMensualEstimado    float64  `json:"ingresoMensualEstimado"`
	AntiguedadMeses           float64  `json:"antiguedadMeses"`
	SituacionBcraPeor24m      *float64 `json:"situacionBcraPeor24m"`
	TieneActividadFormal      bool     `json:"tieneActividadFormal"`
	TieneVehiculosRegistrados bool     `json:"tieneVehiculosRegistrados"`
	TieneInmueblesRegistrados bool     `json:"tieneInmueblesRegistrados"`
	UsoCapacidad              *float64 `json:"usoCapacidad"`
	DTI                       *float64 `json:"dti"`
}

// Situacion5Offer is the priced loan offer for bureau scoring 5.
type Situacion5Offer struct {
	Monto           int64           `json:"monto"`
	Cuotas          int             `json:"cuotas"`
	TasaLabel       string          `json:"tasaLabel"`
	PorcentajeFinal float64         `json:"porcentajeFinal"`
	Debug           Situacion5Debug `json:"debug"`
}

// Situacion5Debug exposes the intermediate values behind an offer.
type Situacion5Debug struct {
	NSE                    string   `json:"nse"`
	CreditoDisponible      float64  `json:"creditoDisponible"`
	AntiguedadLaboralAnios *float64 `json:"antiguedadLaboralAnios"`
	TieneBienRegistrable   bool     `json:"tieneBienRegistrable"`
}

// EvaluationMetadata contains processing information.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId"`
	ExtractMs      int64  `json:"extractMs"`
	ScoreMs        int64  `json:"scoreMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// ConsultaResponse is the API response for a single document query.
type ConsultaResponse struct {
	EvaluationID   string            `json:"evaluationId"`
	Riesgo         RiskTier          `json:"riesgo"`
	ScoringAPI     *float64          `json:"scoringApi"`
	RiesgoInterno  *MediumRiskResult `json:"riesgoInterno"`
	Situacion5     *Situacion5Offer  `json:"situacion5,omitempty"`
	NombreCompleto string            `json:"nombreCompleto"`
	Numero         string            `json:"numero"`
	TipoDocumento  DocumentType      `json:"tipoDocumento"`
	FechaInforme   string            `json:"fechaInforme,omitempty"`
	Alertas        []string          `json:"alertas,omitempty"`

	Metadata EvaluationMetadata `json:"metadata"`
}

// ToResponse converts an Evaluation to the API response contract.
// riesgoInterno is serialized as an explicit null outside the MEDIO tier.
func (e *Evaluation) ToResponse() *ConsultaResponse {
	var alertas []string
	for _, r := range e.RuleResults {
		if r.SubRuleRef == RuleOutcomeFail || r.SubRuleRef == RuleOutcomeReview {
			alertas = append(alertas, r.Reason)
		}
	}

	return &ConsultaResponse{
		EvaluationID:   e.ID,
		Riesgo:         e.Riesgo,
		ScoringAPI:     e.ScoringAPI,
		RiesgoInterno:  e.RiesgoInterno,
		Situacion5:     e.Situacion5,
		NombreCompleto: e.NombreCompleto,
		Numero:         e.Numero,
		TipoDocumento:  e.TipoDocumento,
		FechaInforme:   e.FechaInforme,
		Alertas:        alertas,
		Metadata:       e.Metadata,
	}
}
