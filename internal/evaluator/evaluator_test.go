package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/rules"
)

func reportWithScoring(scoring float64) domain.RawReport {
	return domain.RawReport{
		"identidad": map[string]any{
			"nombre_completo":   "GARCIA MARIA",
			"anios_inscripcion": float64(5),
		},
		"scoringInforme": map[string]any{
			"scoring": scoring,
			"credito": "2.500.001",
			"deuda":   "500000",
			"actividad": map[string]any{
				"empleado": "SI",
			},
		},
		"bcra": map[string]any{
			"resumen_historico": map[string]any{
				"202401": map[string]any{"peor_situacion": float64(1)},
			},
		},
		"nivelSocioeconomico": map[string]any{
			"nse_personal": "C1 - Media alta",
		},
		"condicionTributaria": map[string]any{
			"monto_anual": "2.400.000",
		},
	}
}

func processorInput(scoring float64) *Input {
	return &Input{
		TenantID:      "financiera-001",
		TraceID:       "trace-abc",
		TipoDocumento: domain.DocumentDNI,
		Numero:        "30123456",
		Report:        reportWithScoring(scoring),
		FechaInforme:  "27/01/2024",
		StartTime:     time.Now(),
	}
}

func TestProcessMedioTier(t *testing.T) {
	p := NewProcessor(nil, nil, 0)

	eval := p.Process(context.Background(), processorInput(3))

	if eval.ID == "" {
		t.Error("expected generated evaluation ID")
	}
	if eval.Riesgo != domain.RiskMedio {
		t.Errorf("riesgo = %s, want MEDIO", eval.Riesgo)
	}
	if eval.RiesgoInterno == nil {
		t.Fatal("MEDIO tier must carry the internal verdict")
	}
	if eval.RiesgoInterno.ScoreInterno < 0 || eval.RiesgoInterno.ScoreInterno > 100 {
		t.Errorf("score out of range: %v", eval.RiesgoInterno.ScoreInterno)
	}
	if eval.Situacion5 != nil {
		t.Error("scoring 3 must not produce a situation-5 offer")
	}
	if eval.Status != domain.StatusOK {
		t.Errorf("status = %s, want OK without rules", eval.Status)
	}
	if eval.NombreCompleto != "GARCIA MARIA" {
		t.Errorf("nombre = %q", eval.NombreCompleto)
	}
	if eval.Metadata.EngineVersion != engineVersion {
		t.Errorf("engineVersion = %q", eval.Metadata.EngineVersion)
	}
	if eval.Metadata.TraceID != "trace-abc" {
		t.Errorf("traceID = %q", eval.Metadata.TraceID)
	}
}

func TestProcessBajoTierWithOffer(t *testing.T) {
	p := NewProcessor(nil, nil, 0)

	eval := p.Process(context.Background(), processorInput(5))

	if eval.Riesgo != domain.RiskBajo {
		t.Errorf("riesgo = %s, want BAJO", eval.Riesgo)
	}
	if eval.RiesgoInterno != nil {
		t.Error("internal verdict must stay nil outside MEDIO")
	}
	if eval.Situacion5 == nil {
		t.Fatal("expected a situation-5 offer for scoring 5")
	}
	// disponible 2000001 at base 0.35 plus C1 adjustment 0.05
	if eval.Situacion5.Monto != 800000 {
		t.Errorf("monto = %d, want 800000", eval.Situacion5.Monto)
	}
	if eval.ScoringAPI == nil || *eval.ScoringAPI != 5 {
		t.Errorf("scoringApi = %v, want 5", eval.ScoringAPI)
	}
}

func TestProcessAltoTier(t *testing.T) {
	p := NewProcessor(nil, nil, 0)

	eval := p.Process(context.Background(), processorInput(2))

	if eval.Riesgo != domain.RiskAlto {
		t.Errorf("riesgo = %s, want ALTO", eval.Riesgo)
	}
	if eval.RiesgoInterno != nil || eval.Situacion5 != nil {
		t.Error("ALTO tier carries neither verdict nor offer")
	}
}

func TestProcessMissingScoringDefaultsToMedio(t *testing.T) {
	p := NewProcessor(nil, nil, 0)

	input := processorInput(3)
	delete(input.Report["scoringInforme"].(map[string]any), "scoring")

	eval := p.Process(context.Background(), input)

	if eval.Riesgo != domain.RiskMedio {
		t.Errorf("riesgo = %s, want MEDIO fallback", eval.Riesgo)
	}
	if eval.ScoringAPI != nil {
		t.Errorf("scoringApi = %v, want nil", eval.ScoringAPI)
	}
	if eval.RiesgoInterno == nil {
		t.Error("fallback MEDIO must still run the internal scorer")
	}
}

func TestProcessRuleFailureSetsAlerta(t *testing.T) {
	engine, err := rules.NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	one := 1.0
	engine.LoadRule(&domain.RuleConfig{
		ID:         "always-fail",
		Expression: "scoring >= 0.0",
		Bands: []domain.RuleBand{
			{LowerLimit: &one, SubRuleRef: domain.RuleOutcomeFail, Reason: "flagged"},
		},
		Enabled: true,
	})

	p := NewProcessor(nil, engine, 0)
	eval := p.Process(context.Background(), processorInput(3))

	if eval.Status != domain.StatusAlerta {
		t.Errorf("status = %s, want ALERTA", eval.Status)
	}
	if eval.Metadata.RulesEvaluated != 1 {
		t.Errorf("rulesEvaluated = %d, want 1", eval.Metadata.RulesEvaluated)
	}
	// Advisory only: the verdicts must be untouched.
	if eval.Riesgo != domain.RiskMedio || eval.RiesgoInterno == nil {
		t.Error("rule failure must not change the classification")
	}
	if !ShouldAlert(eval) {
		t.Error("ShouldAlert must be true")
	}
	if reasons := GetReasons(eval); len(reasons) != 1 || reasons[0] != "flagged" {
		t.Errorf("reasons = %v", reasons)
	}
}

func TestToResponseCollectsAlertas(t *testing.T) {
	p := NewProcessor(nil, nil, 0)
	eval := p.Process(context.Background(), processorInput(3))
	eval.RuleResults = []domain.RuleResult{
		{RuleID: "r1", SubRuleRef: domain.RuleOutcomeReview, Reason: "revisar manualmente"},
		{RuleID: "r2", SubRuleRef: domain.RuleOutcomePass, Reason: "ok"},
	}

	resp := eval.ToResponse()
	if resp.EvaluationID != eval.ID {
		t.Errorf("evaluationId = %s", resp.EvaluationID)
	}
	if len(resp.Alertas) != 1 || resp.Alertas[0] != "revisar manualmente" {
		t.Errorf("alertas = %v", resp.Alertas)
	}
	if resp.Riesgo != domain.RiskMedio {
		t.Errorf("riesgo = %s", resp.Riesgo)
	}
}
