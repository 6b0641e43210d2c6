package offer

import (
	"math"
	"testing"
	"time"

	"github.com/punto-financiamiento/informes/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func tptr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fixedCalculator() *Calculator {
	c := NewCalculator(nil)
	c.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func qualifyingSignals() *domain.Signals {
	return &domain.Signals{
		ScoringBureau: fptr(5),
		NSE:           "C2",
		Credito:       fptr(1500001),
		Deuda:         fptr(500000),
	}
}

func TestCalculateBaseOffer(t *testing.T) {
	got := fixedCalculator().Calculate(qualifyingSignals())
	if got == nil {
		t.Fatal("expected an offer")
	}

	// disponible 1000001, pct 0.35, floor -> 350000
	if got.Monto != 350000 {
		t.Errorf("monto = %d, want 350000", got.Monto)
	}
	if got.Cuotas != 6 {
		t.Errorf("cuotas = %d, want 6", got.Cuotas)
	}
	if got.TasaLabel != "+75% en 6 cuotas" {
		t.Errorf("tasaLabel = %q", got.TasaLabel)
	}
	if math.Abs(got.PorcentajeFinal-0.35) > 1e-9 {
		t.Errorf("pct = %v, want 0.35", got.PorcentajeFinal)
	}
	if got.Debug.CreditoDisponible != 1000001 {
		t.Errorf("disponible = %v", got.Debug.CreditoDisponible)
	}
	if got.Debug.AntiguedadLaboralAnios != nil {
		t.Error("no tax periods means nil tenure")
	}
	if got.Debug.TieneBienRegistrable {
		t.Error("no assets in signals")
	}
}

func TestCalculateGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Signals)
	}{
		{"ScoringNil", func(s *domain.Signals) { s.ScoringBureau = nil }},
		{"ScoringNotFive", func(s *domain.Signals) { s.ScoringBureau = fptr(4) }},
		{"ScoringAlmostFive", func(s *domain.Signals) { s.ScoringBureau = fptr(4.9) }},
		{"NSEUnparseable", func(s *domain.Signals) { s.NSE = "" }},
		{"NSETooLowD1", func(s *domain.Signals) { s.NSE = "D1" }},
		{"NSETooLowD2", func(s *domain.Signals) { s.NSE = "D2" }},
		{"CreditoMissing", func(s *domain.Signals) { s.Credito = nil }},
		{"DeudaMissing", func(s *domain.Signals) { s.Deuda = nil }},
	}

	c := fixedCalculator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := qualifyingSignals()
			tc.mutate(s)
			if got := c.Calculate(s); got != nil {
				t.Errorf("expected no offer, got %+v", got)
			}
		})
	}
}

func TestCalculateBelowMinimumRejected(t *testing.T) {
	s := qualifyingSignals()
	s.Credito = fptr(500000)
	s.Deuda = fptr(400000)

	// disponible 100000 * 0.35 = 35000 < 300000
	if got := fixedCalculator().Calculate(s); got != nil {
		t.Errorf("expected rejection below minimum, got monto %d", got.Monto)
	}
}

func TestCalculateNegativeDisponibleClampsToZero(t *testing.T) {
	s := qualifyingSignals()
	s.Credito = fptr(100000)
	s.Deuda = fptr(900000)

	if got := fixedCalculator().Calculate(s); got != nil {
		t.Errorf("expected no offer for negative disponible, got %+v", got)
	}
}

func TestCalculateCapAppliedAfterFloorCheck(t *testing.T) {
	s := qualifyingSignals()
	s.NSE = "A"
	s.Credito = fptr(8000000)
	s.Deuda = fptr(500000)
	s.TieneInmueblesRegistrados = true
	s.PeriodosTributarios = []domain.TaxPeriod{
		{Desde: *tptr(2015, 1, 1), Hasta: tptr(2022, 1, 1)},
	}

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer")
	}
	// disponible 7500000 at pct 0.35+0.10+0.20+0.10 lands well above the cap.
	if got.Monto != 2000000 {
		t.Errorf("monto = %d, want cap 2000000", got.Monto)
	}
	if math.Abs(got.PorcentajeFinal-0.75) > 1e-9 {
		t.Errorf("pct = %v, want 0.75", got.PorcentajeFinal)
	}
}

func TestCalculateTenureBump(t *testing.T) {
	s := qualifyingSignals()
	s.PeriodosTributarios = []domain.TaxPeriod{
		{Desde: *tptr(2010, 1, 1), Hasta: tptr(2017, 1, 1)},
	}

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer")
	}
	if math.Abs(got.PorcentajeFinal-0.45) > 1e-9 {
		t.Errorf("pct = %v, want 0.45 with tenure bump", got.PorcentajeFinal)
	}
	if got.Debug.AntiguedadLaboralAnios == nil || *got.Debug.AntiguedadLaboralAnios < 5 {
		t.Errorf("tenure = %v, want >= 5 years", got.Debug.AntiguedadLaboralAnios)
	}
}

func TestCalculateOpenPeriodRunsUntilToday(t *testing.T) {
	// Clock is pinned to 2026-08-31, so an open period from 2020 exceeds
	// five years.
	s := qualifyingSignals()
	s.PeriodosTributarios = []domain.TaxPeriod{
		{Desde: *tptr(2020, 1, 1), Hasta: nil},
	}

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer")
	}
	if math.Abs(got.PorcentajeFinal-0.45) > 1e-9 {
		t.Errorf("pct = %v, want tenure bump from open period", got.PorcentajeFinal)
	}
}

func TestCalculateInvertedPeriodDiscarded(t *testing.T) {
	s := qualifyingSignals()
	s.PeriodosTributarios = []domain.TaxPeriod{
		{Desde: *tptr(2024, 1, 1), Hasta: tptr(2020, 1, 1)},
	}

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer")
	}
	if got.Debug.AntiguedadLaboralAnios != nil {
		t.Errorf("inverted period must not count as tenure, got %v", *got.Debug.AntiguedadLaboralAnios)
	}
	if math.Abs(got.PorcentajeFinal-0.35) > 1e-9 {
		t.Errorf("pct = %v, want base without tenure bump", got.PorcentajeFinal)
	}
}

func TestCalculateOverlappingPeriodsMerged(t *testing.T) {
	// Two overlapping two-year periods cover three years total, below the
	// five-year tenure threshold.
	s := qualifyingSignals()
	s.PeriodosTributarios = []domain.TaxPeriod{
		{Desde: *tptr(2018, 1, 1), Hasta: tptr(2020, 1, 1)},
		{Desde: *tptr(2019, 1, 1), Hasta: tptr(2021, 1, 1)},
	}

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer")
	}
	anios := got.Debug.AntiguedadLaboralAnios
	if anios == nil || *anios < 2.9 || *anios > 3.1 {
		t.Errorf("merged tenure = %v, want about 3 years", anios)
	}
	if math.Abs(got.PorcentajeFinal-0.35) > 1e-9 {
		t.Errorf("pct = %v, want no tenure bump", got.PorcentajeFinal)
	}
}

func TestCalculateAssetBumpWithNSEAdjustment(t *testing.T) {
	// C3 adjusts -0.10, one registered vehicle adds +0.20.
	s := qualifyingSignals()
	s.NSE = "C3"
	s.TieneVehiculosRegistrados = true

	got := fixedCalculator().Calculate(s)
	if got == nil {
		t.Fatal("expected an offer for C3")
	}
	if math.Abs(got.PorcentajeFinal-0.45) > 1e-9 {
		t.Errorf("pct = %v, want 0.35+0.20-0.10", got.PorcentajeFinal)
	}
	if !got.Debug.TieneBienRegistrable {
		t.Error("vehicle must count as registrable asset")
	}
}
