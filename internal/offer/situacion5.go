// Package offer prices the loan offered to subjects with bureau scoring 5.
package offer

import (
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/normalize"
)

// Offer terms. Monto bounds apply to the computed amount: below the minimum
// there is no offer at all, above the maximum the amount is capped.
const (
	MontoMinimo = 300000
	MontoMaximo = 2000000
	Cuotas      = 6
	TasaLabel   = "+75% en 6 cuotas"

	pctBase            = 0.35
	pctAntiguedad      = 0.10
	pctBienRegistrable = 0.20

	antiguedadMinimaAnios = 5.0
)

// nseRank orders the socioeconomic codes ascending. The offer requires at
// least C3, so D1/D2 never qualify.
var nseRank = map[string]int{
	"D2": 0,
	"D1": 1,
	"C3": 2,
	"C2": 3,
	"C1": 4,
	"B":  5,
	"A":  6,
}

// nseAdjust is the percentage adjustment applied per NSE code.
var nseAdjust = map[string]float64{
	"C3": -0.10,
	"C2": 0.0,
	"C1": 0.05,
	"B":  0.10,
	"A":  0.10,
}

// Calculator computes situation-5 offers. The clock is injectable because
// open tax periods are closed at "today" when computing tenure.
type Calculator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewCalculator creates a Calculator. A nil logger disables debug output.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Calculator{logger: logger, now: time.Now}
}

// Calculate returns the priced offer, or nil when any gate fails: the bureau
// scoring must be exactly 5, the NSE must parse and rank at least C3, and
// both credito and deuda must be present. The amount is floor(disponible *
// pct); amounts below MontoMinimo are rejected before the MontoMaximo cap is
// applied.
func (c *Calculator) Calculate(s *domain.Signals) *domain.Situacion5Offer {
	if s.ScoringBureau == nil || *s.ScoringBureau != 5 {
		return nil
	}

	if s.NSE == "" {
		c.logger.Debug("situacion5 no aplica", "reason", "nse no parseable")
		return nil
	}
	rank, ok := nseRank[s.NSE]
	if !ok || rank < nseRank["C3"] {
		c.logger.Debug("situacion5 no aplica", "reason", "nse menor a C3", "nse", s.NSE)
		return nil
	}

	if s.Credito == nil || s.Deuda == nil {
		c.logger.Debug("situacion5 no aplica", "reason", "falta credito o deuda")
		return nil
	}
	disponible := *s.Credito - *s.Deuda
	if disponible < 0 {
		disponible = 0
	}

	pct := pctBase

	antigAnios := c.antiguedadAnios(s.PeriodosTributarios)
	if antigAnios != nil && *antigAnios >= antiguedadMinimaAnios {
		pct += pctAntiguedad
	}

	tieneBien := s.TieneInmueblesRegistrados || s.TieneVehiculosRegistrados
	if tieneBien {
		pct += pctBienRegistrable
	}

	pct += nseAdjust[s.NSE]

	monto := int64(math.Floor(disponible * pct))

	c.logger.Debug("situacion5 calculo",
		"nse", s.NSE,
		"disponible", disponible,
		"pct", pct,
		"monto", monto)

	if monto < MontoMinimo {
		return nil
	}
	if monto > MontoMaximo {
		monto = MontoMaximo
	}

	return &domain.Situacion5Offer{
		Monto:           monto,
		Cuotas:          Cuotas,
		TasaLabel:       TasaLabel,
		PorcentajeFinal: pct,
		Debug: domain.Situacion5Debug{
			NSE:                    s.NSE,
			CreditoDisponible:      disponible,
			AntiguedadLaboralAnios: antigAnios,
			TieneBienRegistrable:   tieneBien,
		},
	}
}

// antiguedadAnios computes employment tenure in years from the tax-period
// history. Open periods run until today, periods ending before they start
// are discarded, and overlaps are merged so double registrations do not
// double-count. Returns nil when no usable period exists.
func (c *Calculator) antiguedadAnios(periods []domain.TaxPeriod) *float64 {
	if len(periods) == 0 {
		return nil
	}

	now := c.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var intervals []normalize.Interval
	for _, p := range periods {
		end := today
		if p.Hasta != nil {
			end = *p.Hasta
		}
		if end.Before(p.Desde) {
			continue
		}
		intervals = append(intervals, normalize.Interval{Start: p.Desde, End: end})
	}
	if len(intervals) == 0 {
		return nil
	}

	anios := normalize.TotalDays(normalize.MergeIntervals(intervals)) / 365.25
	return &anios
}
