// Package extract flattens a raw bureau report into domain.Signals.
// This is the single place that knows the report's JSON shape; classifiers
// and the offer calculator only ever see Signals. Absent or malformed
// fields resolve to documented defaults, never to errors.
package extract

import (
	"github.com/punto-financiamiento/informes/internal/domain"
	"github.com/punto-financiamiento/informes/internal/normalize"
)

// FallbackName is the name reported when no chain accessor resolves.
const FallbackName = "Sin nombre"

// Accessor is one named step of a fallback chain. The name makes the
// precedence order testable and auditable in isolation.
type Accessor struct {
	Name string
	Get  func(domain.RawReport) (string, bool)
}

// NombreChain resolves the subject's full name. First non-empty wins.
var NombreChain = []Accessor{
	{
		Name: "identidad.nombre_completo",
		Get: func(r domain.RawReport) (string, bool) {
			return getString(r, "identidad", "nombre_completo")
		},
	},
	{
		Name: "soaAfipA4Online.nombreCompleto",
		Get: func(r domain.RawReport) (string, bool) {
			return getString(r, "soaAfipA4Online", "nombreCompleto")
		},
	},
	{
		Name: "condicionTributaria.nombre",
		Get: func(r domain.RawReport) (string, bool) {
			return getString(r, "condicionTributaria", "nombre")
		},
	},
}

// ResolveNombre walks NombreChain and returns the first non-empty name,
// or FallbackName.
func ResolveNombre(r domain.RawReport) string {
	for _, acc := range NombreChain {
		if v, ok := acc.Get(r); ok && v != "" {
			return v
		}
	}
	return FallbackName
}

// Signals builds the normalized signal record from a raw report.
func Signals(r domain.RawReport) *domain.Signals {
	s := &domain.Signals{
		NombreCompleto: ResolveNombre(r),
	}

	s.ScoringBureau = normalize.ToNumber(get(r, "scoringInforme", "scoring"))
	s.Credito = normalize.ToNumber(get(r, "scoringInforme", "credito"))
	s.Deuda = normalize.ToNumber(get(r, "scoringInforme", "deuda"))

	if s.Credito != nil && *s.Credito > 0 {
		s.CapacidadTotal = *s.Credito
	}
	if s.Deuda != nil && *s.Deuda > 0 {
		s.CompromisoMensual = *s.Deuda / 12
	}

	if v := normalize.ToNumber(get(r, "condicionTributaria", "monto_anual")); v != nil {
		s.IngresoMensualEstimado = *v / 12
	}

	if v := normalize.ToNumber(get(r, "identidad", "anios_inscripcion")); v != nil && *v > 0 {
		s.AntiguedadLaboralMeses = *v * 12
	}

	s.SituacionBcraPeor24m = peorSituacionBcra(r)

	s.TieneActividadFormal = tieneActividadFormal(r)
	s.TieneVehiculosRegistrados = hasNonEmptyArray(r, "rodados")
	s.TieneInmueblesRegistrados = hasNonEmptyArray(r, "inmuebles")

	s.NSE = normalize.ParseNSECode(get(r, "nivelSocioeconomico", "nse_personal"))
	s.PeriodosTributarios = periodosTributarios(r)

	return s
}

// peorSituacionBcra takes the maximum peor_situacion across the historical
// BCRA summary, or nil when the report carries no usable history.
func peorSituacionBcra(r domain.RawReport) *float64 {
	resumen, ok := get(r, "bcra", "resumen_historico").(map[string]any)
	if !ok {
		return nil
	}

	var peor *float64
	for _, raw := range resumen {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		sit := normalize.ToNumber(entry["peor_situacion"])
		if sit == nil {
			continue
		}
		if peor == nil || *sit > *peor {
			peor = sit
		}
	}
	return peor
}

func tieneActividadFormal(r domain.RawReport) bool {
	actividad, ok := get(r, "scoringInforme", "actividad").(map[string]any)
	if !ok {
		return false
	}
	for _, campo := range []string{"empleado", "monotributista", "autonomo", "empleador"} {
		if v, ok := actividad[campo].(string); ok && v == "SI" {
			return true
		}
	}
	return false
}

// periodosTributarios parses the historical tax-registration records.
// Records without a parseable start date are skipped; a missing end date is
// kept as nil (open period, closed at evaluation time by the calculator).
func periodosTributarios(r domain.RawReport) []domain.TaxPeriod {
	hist, ok := get(r, "condicionTributariaHistorial").([]any)
	if !ok {
		return nil
	}

	var periods []domain.TaxPeriod
	for _, raw := range hist {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		desde := normalize.ParseDate(item["fecha_desde"])
		if desde == nil {
			continue
		}
		periods = append(periods, domain.TaxPeriod{
			Desde: *desde,
			Hasta: normalize.ParseDate(item["fecha_hasta"]),
		})
	}
	return periods
}

// get walks nested maps along path. Returns nil when any step is missing
// or not an object.
func get(r domain.RawReport, path ...string) any {
	var cur any = map[string]any(r)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func getString(r domain.RawReport, path ...string) (string, bool) {
	s, ok := get(r, path...).(string)
	return s, ok
}

func hasNonEmptyArray(r domain.RawReport, path ...string) bool {
	arr, ok := get(r, path...).([]any)
	return ok && len(arr) > 0
}
