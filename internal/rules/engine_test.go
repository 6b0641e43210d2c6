package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/punto-financiamiento/informes/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "compromiso > 100.0",
		Bands:      []domain.RuleBand{},
		Weight:     1.0,
		Enabled:    true,
	}

	err := engine.LoadRule(rule)
	if err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	err := engine.LoadRule(rule)
	if err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestEvaluateSituacionRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	zero := 0.0
	one := 1.0

	rule := &domain.RuleConfig{
		ID:         "situacion-check",
		Name:       "Situacion BCRA Check",
		Expression: "peor_situacion >= 3.0 ? 1.0 : 0.0",
		Bands: []domain.RuleBand{
			{LowerLimit: &zero, UpperLimit: &one, SubRuleRef: domain.RuleOutcomePass, Reason: "Historial sano"},
			{LowerLimit: &one, UpperLimit: nil, SubRuleRef: domain.RuleOutcomeFail, Reason: "Situación BCRA irregular"},
		},
		Weight:  1.0,
		Enabled: true,
	}

	engine.LoadRule(rule)

	ctx := context.Background()

	input := &EvaluateInput{
		TenantID: "financiera-001",
		Numero:   "20123456789",
		Signals:  &domain.Signals{SituacionBcraPeor24m: fptr(1)},
		Riesgo:   domain.RiskMedio,
	}

	results, err := engine.EvaluateAll(ctx, input)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	if results[0].Score != 0.0 {
		t.Errorf("expected score 0.0 for situacion 1, got %.2f", results[0].Score)
	}
	if results[0].SubRuleRef != domain.RuleOutcomePass {
		t.Errorf("expected PASS, got %s", results[0].SubRuleRef)
	}

	// Irregular history must fail
	input.Signals.SituacionBcraPeor24m = fptr(4)
	results, _ = engine.EvaluateAll(ctx, input)

	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for situacion 4, got %.2f", results[0].Score)
	}
	if results[0].SubRuleRef != domain.RuleOutcomeFail {
		t.Errorf("expected FAIL, got %s", results[0].SubRuleRef)
	}
	if results[0].Reason != "Situación BCRA irregular" {
		t.Errorf("unexpected reason %q", results[0].Reason)
	}
}

func TestEvaluateBooleanRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "sin-actividad-bajo-riesgo",
		Name:       "Low Risk Without Activity",
		Expression: "riesgo == 'BAJO' && !actividad_formal",
		Bands:      []domain.RuleBand{},
		Weight:     1.0,
		Enabled:    true,
	}

	engine.LoadRule(rule)

	ctx := context.Background()

	input := &EvaluateInput{
		TenantID: "financiera-001",
		Numero:   "20123456789",
		Signals:  &domain.Signals{TieneActividadFormal: true},
		Riesgo:   domain.RiskBajo,
	}

	results, _ := engine.EvaluateAll(ctx, input)
	if results[0].Score != 0.0 {
		t.Errorf("expected score 0.0 with formal activity, got %.2f", results[0].Score)
	}

	// Low tier without any formal activity trips the rule
	input.Signals.TieneActividadFormal = false
	results, _ = engine.EvaluateAll(ctx, input)
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 without activity, got %.2f", results[0].Score)
	}
}

func TestConsultaVelocityRule(t *testing.T) {
	// Mock velocity getter that returns a fixed count
	velocityGetter := func(ctx context.Context, tenantID, numero string, windowSecs int) (int64, error) {
		return 15, nil
	}

	engine, _ := NewEngine(velocityGetter, 5)
	defer engine.Close()

	zero := 0.0
	half := 0.5
	one := 1.0

	rule := &domain.RuleConfig{
		ID:          "consulta-velocity-001",
		Name:        "Consulta Velocity Check",
		Description: "Flags documents queried unusually often",
		Version:     "1.0.0",
		Expression:  "consultas_recientes > 10 ? 1.0 : (consultas_recientes > 5 ? 0.5 : 0.0)",
		Bands: []domain.RuleBand{
			{LowerLimit: &zero, UpperLimit: &half, SubRuleRef: domain.RuleOutcomePass, Reason: "Normal velocity"},
			{LowerLimit: &half, UpperLimit: &one, SubRuleRef: domain.RuleOutcomeReview, Reason: "Elevated velocity"},
			{LowerLimit: &one, UpperLimit: nil, SubRuleRef: domain.RuleOutcomeFail, Reason: "High velocity"},
		},
		Weight:  1.0,
		Enabled: true,
	}
	engine.LoadRule(rule)

	ctx := context.Background()
	input := &EvaluateInput{
		TenantID:       "financiera-001",
		Numero:         "20123456789",
		Signals:        &domain.Signals{},
		Riesgo:         domain.RiskMedio,
		ConsultaWindow: 3600,
	}

	results, _ := engine.EvaluateAll(ctx, input)

	// 15 consultas (> 10) must fail
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for high velocity, got %.2f", results[0].Score)
	}
	if results[0].SubRuleRef != domain.RuleOutcomeFail {
		t.Errorf("expected FAIL for high velocity, got %s", results[0].SubRuleRef)
	}
}

func TestParallelExecution(t *testing.T) {
	engine, _ := NewEngine(nil, 3)
	defer engine.Close()

	// Load multiple rules
	for i := 0; i < 10; i++ {
		rule := &domain.RuleConfig{
			ID:         fmt.Sprintf("rule-%d", i),
			Name:       fmt.Sprintf("Rule %d", i),
			Expression: "capacidad > 0.0",
			Weight:     1.0,
			Enabled:    true,
		}
		engine.LoadRule(rule)
	}

	if engine.RulesCount() != 10 {
		t.Fatalf("expected 10 rules, got %d", engine.RulesCount())
	}

	ctx := context.Background()
	input := &EvaluateInput{
		TenantID: "financiera-001",
		Numero:   "20123456789",
		Signals:  &domain.Signals{CapacidadTotal: 100000},
		Riesgo:   domain.RiskMedio,
	}

	results, err := engine.EvaluateAll(ctx, input)
	if err != nil {
		t.Fatalf("parallel evaluation failed: %v", err)
	}

	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}

	// All should have passed
	for i, r := range results {
		if r.Score != 1.0 {
			t.Errorf("rule %d: expected score 1.0, got %.2f", i, r.Score)
		}
	}
}

func TestRawReportAccess(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "raw-access",
		Expression: "'juicios' in informe && size(informe['juicios']) > 0",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	ctx := context.Background()
	input := &EvaluateInput{
		TenantID: "financiera-001",
		Numero:   "20123456789",
		Signals:  &domain.Signals{},
		Riesgo:   domain.RiskBajo,
		Informe: domain.RawReport{
			"juicios": []any{map[string]any{"expediente": "123/2024"}},
		},
	}

	results, _ := engine.EvaluateAll(ctx, input)
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 with lawsuits present, got %.2f", results[0].Score)
	}

	input.Informe = nil
	results, _ = engine.EvaluateAll(ctx, input)
	if results[0].Score != 0.0 {
		t.Errorf("expected score 0.0 without raw report, got %.2f", results[0].Score)
	}
}

func TestRuleResultMetadata(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "meta-test",
		Expression: "score_interno > 0.0",
		Weight:     0.75,
		Enabled:    true,
	}
	engine.LoadRule(rule)

	ctx := context.Background()
	input := &EvaluateInput{
		TenantID:     "financiera-123",
		Numero:       "30456789",
		Signals:      &domain.Signals{},
		Riesgo:       domain.RiskMedio,
		ScoreInterno: fptr(65),
	}

	results, _ := engine.EvaluateAll(ctx, input)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.RuleID != "meta-test" {
		t.Errorf("ruleID = %s", r.RuleID)
	}
	if r.TenantID != "financiera-123" {
		t.Errorf("tenantID = %s", r.TenantID)
	}
	if r.Numero != "30456789" {
		t.Errorf("numero = %s", r.Numero)
	}
	if r.Weight != 0.75 {
		t.Errorf("weight = %v", r.Weight)
	}
	if r.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", r.Score)
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{ID: "old", Expression: "true", Enabled: true})

	err := engine.ReloadRules([]*domain.RuleConfig{
		{ID: "new-1", Expression: "nse == 'C3'", Enabled: true},
		{ID: "new-2", Expression: "ingreso > 0.0", Enabled: true},
		{ID: "disabled", Expression: "true", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 2 {
		t.Errorf("expected 2 rules after reload, got %d", engine.RulesCount())
	}
	for _, cfg := range engine.GetLoadedRules() {
		if cfg.ID == "old" {
			t.Error("old rule survived reload")
		}
	}
}
