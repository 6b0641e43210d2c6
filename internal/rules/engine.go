// Package rules provides the CEL-Go based override-rule engine. Rules are
// advisory: they flag evaluations for alert or review on top of the fixed
// classifiers, they never change a verdict.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/punto-financiamiento/informes/internal/domain"
)

// Engine is the CEL-based rule evaluation engine.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]*CompiledRule
	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// VelocityGetter returns the number of consultas for a document in a time
// window, used by rules that watch repeated lookups of the same person.
type VelocityGetter func(ctx context.Context, tenantID, numero string, windowSecs int) (int64, error)

// NewEngine creates a new rule evaluation engine.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the normalized report signals
	env, err := cel.NewEnv(
		cel.Variable("informe", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("scoring", cel.DoubleType),
		cel.Variable("nse", cel.StringType),
		cel.Variable("capacidad", cel.DoubleType),
		cel.Variable("compromiso", cel.DoubleType),
		cel.Variable("ingreso", cel.DoubleType),
		cel.Variable("antiguedad_meses", cel.DoubleType),
		cel.Variable("peor_situacion", cel.DoubleType),
		cel.Variable("actividad_formal", cel.BoolType),
		cel.Variable("tiene_vehiculos", cel.BoolType),
		cel.Variable("tiene_inmuebles", cel.BoolType),
		cel.Variable("riesgo", cel.StringType),
		cel.Variable("score_interno", cel.DoubleType),
		cel.Variable("consultas_recientes", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]*CompiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the evaluation context for rule evaluation.
type EvaluateInput struct {
	TenantID string
	Numero   string

	Signals *domain.Signals
	Riesgo  domain.RiskTier

	// ScoreInterno is nil outside the MEDIO tier; rules see 0 then.
	ScoreInterno *float64

	// ConsultaWindow is the lookback in seconds for consultas_recientes.
	ConsultaWindow int

	// Informe exposes the raw report to rules that need fields the
	// normalized signals do not carry.
	Informe domain.RawReport
}

// EvaluateAll evaluates all loaded rules in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	// Count recent consultas for this document if a getter is available
	var consultasRecientes int64
	if e.velocityGetter != nil && input.ConsultaWindow > 0 {
		count, err := e.velocityGetter(ctx, input.TenantID, input.Numero, input.ConsultaWindow)
		if err == nil {
			consultasRecientes = count
		}
	}

	activation := buildActivation(input, consultasRecientes)

	// Parallel evaluation using worker pool pattern
	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			result := e.evaluateRule(ctx, r, activation, input)
			results[idx] = result
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

func buildActivation(input *EvaluateInput, consultasRecientes int64) map[string]any {
	s := input.Signals

	scoring := 0.0
	if s.ScoringBureau != nil {
		scoring = *s.ScoringBureau
	}
	peorSituacion := 0.0
	if s.SituacionBcraPeor24m != nil {
		peorSituacion = *s.SituacionBcraPeor24m
	}
	scoreInterno := 0.0
	if input.ScoreInterno != nil {
		scoreInterno = *input.ScoreInterno
	}

	informe := map[string]any(input.Informe)
	if informe == nil {
		informe = map[string]any{}
	}

	return map[string]any{
		"informe":             informe,
		"scoring":             scoring,
		"nse":                 s.NSE,
		"capacidad":           s.CapacidadTotal,
		"compromiso":          s.CompromisoMensual,
		"ingreso":             s.IngresoMensualEstimado,
		"antiguedad_meses":    s.AntiguedadLaboralMeses,
		"peor_situacion":      peorSituacion,
		"actividad_formal":    s.TieneActividadFormal,
		"tiene_vehiculos":     s.TieneVehiculosRegistrados,
		"tiene_inmuebles":     s.TieneInmueblesRegistrados,
		"riesgo":              string(input.Riesgo),
		"score_interno":       scoreInterno,
		"consultas_recientes": consultasRecientes,
	}
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(ctx context.Context, rule *CompiledRule, activation map[string]any, input *EvaluateInput) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID:   rule.Config.ID,
		TenantID: input.TenantID,
		Numero:   input.Numero,
		Weight:   rule.Config.Weight,
	}

	// Evaluate CEL expression
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.SubRuleRef = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	// Convert result to score
	score := toScore(out)
	result.Score = score

	// Determine outcome based on bands
	result.SubRuleRef, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order. Use lower inclusive, upper exclusive,
// except when upper is nil (meaning infinity).
func matchBand(score float64, bands []domain.RuleBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		hasUpper := band.UpperLimit != nil
		upper := float64(1e9) // effectively infinity

		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if hasUpper {
			upper = *band.UpperLimit
		}

		// Match: lower <= score < upper (or lower <= score if no upper bound)
		if score >= lower {
			if !hasUpper || score < upper {
				return band.SubRuleRef, band.Reason
			}
			// Special case: if score equals upper and this is the last band, match it
			if score == upper && band.UpperLimit != nil {
				// Continue to next band which should have this as its lower
				continue
			}
		}
	}

	// Default to pass if no band matches
	return domain.RuleOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	// Load new rules
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
