// Package domain defines the core interfaces and types for Informes.
package domain

import (
	"time"
)

// RawReport is the credit-bureau report exactly as the upstream API returned
// it. Its shape is not owned by this system; every access must tolerate
// missing keys and wrong types. Only the extractor reads it.
type RawReport map[string]any

// DocumentType identifies the national document used to query the bureau.
type DocumentType string

const (
	DocumentDNI  DocumentType = "dni"
	DocumentCUIT DocumentType = "cuit"
	DocumentCUIL DocumentType = "cuil"
)

// TaxPeriod is one historical tax-registration record from the report.
// Desde is always valid; records without a parseable start date are dropped
// during extraction. A nil Hasta means the registration is still open.
type TaxPeriod struct {
	Desde time.Time
	Hasta *time.Time
}

// Signals is the flat, normalized view of a RawReport. It is built once per
// report and is the only input the classifiers and the offer calculator see.
// Nil pointer fields mean "not present / not parseable", which the scorers
// treat differently from zero.
type Signals struct {
	NombreCompleto string

	// ScoringBureau drives the tier classification and the situation-5 gate.
	ScoringBureau *float64

	// Credito and Deuda hold the raw parsed bureau amounts. The situation-5
	// calculator needs to distinguish "absent" from "zero", so these stay
	// nullable while the derived fields below default to 0.
	Credito *float64
	Deuda   *float64

	CapacidadTotal         float64
	CompromisoMensual      float64
	IngresoMensualEstimado float64
	AntiguedadLaboralMeses float64

	// SituacionBcraPeor24m is the worst BCRA situation across the historical
	// summary, or nil when the report has no history.
	SituacionBcraPeor24m *float64

	TieneActividadFormal      bool
	TieneVehiculosRegistrados bool
	TieneInmueblesRegistrados bool

	// NSE is the parsed socioeconomic code (A..D2) or "" when unparseable.
	NSE string

	// PeriodosTributarios feeds the employment-tenure computation of the
	// situation-5 calculator.
	PeriodosTributarios []TaxPeriod
}

// RiskTier is the coarse risk bucket derived from the bureau scoring.
type RiskTier string

const (
	RiskAlto  RiskTier = "ALTO"
	RiskMedio RiskTier = "MEDIO"
	RiskBajo  RiskTier = "BAJO"
)

// Consulta is the audit record of one document query.
type Consulta struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenantId"`
	TipoDocumento DocumentType `json:"tipoDocumento"`
	Numero        string       `json:"numero"`

	NombreCompleto string   `json:"nombreCompleto"`
	Riesgo         RiskTier `json:"riesgo"`
	ScoringAPI     *float64 `json:"scoringApi"`

	EvaluationID string    `json:"evaluationId"`
	Usuario      string    `json:"usuario,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CachedReport is a bureau report held in cache between consultas for the
// same document.
type CachedReport struct {
	TipoDocumento DocumentType `json:"tipoDocumento"`
	Numero        string       `json:"numero"`
	Fecha         string       `json:"fecha,omitempty"`
	Informe       RawReport    `json:"informe"`
}
