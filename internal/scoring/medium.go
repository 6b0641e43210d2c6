package scoring

import (
	"fmt"

	"github.com/punto-financiamiento/informes/internal/domain"
)

// Score thresholds for the medium-risk verdict.
const (
	scoreBase            = 50.0
	umbralAprobado       = 70.0
	umbralRevision       = 55.0
	antiguedadLargaMeses = 36.0
	antiguedadCortaMeses = 12.0
)

// EvaluateMediumRisk runs the weighted internal scorer for MEDIO-tier
// subjects. Starting from a base of 50, each factor adds or subtracts a
// fixed weight and appends a human-readable motive; the motives list follows
// evaluation order (BCRA, actividad, capacidad, cuota/ingreso, activos) so
// an analyst can replay the decision. The final score is clamped to [0,100].
func EvaluateMediumRisk(s *domain.Signals) *domain.MediumRiskResult {
	score := scoreBase
	var motivos []string

	// 1) Historial BCRA
	if s.SituacionBcraPeor24m != nil {
		switch sit := *s.SituacionBcraPeor24m; {
		case sit >= 3:
			score -= 30
			motivos = append(motivos, "Registro de situación BCRA 3 o superior en los últimos 24 meses.")
		case sit == 2:
			score += 5
			motivos = append(motivos, "Alguna situación 2 regularizada en BCRA.")
		case sit == 1:
			score += 15
			motivos = append(motivos, "Historial BCRA en situación 1 (normal) últimos 24 meses.")
		}
	} else {
		motivos = append(motivos, "Sin información clara de situación BCRA (neutro).")
	}

	// 2) Actividad formal y antigüedad
	if !s.TieneActividadFormal {
		score -= 30
		motivos = append(motivos, "No se detecta actividad formal registrable.")
	} else {
		switch {
		case s.AntiguedadLaboralMeses >= antiguedadLargaMeses:
			score += 15
			motivos = append(motivos, "Actividad formal con antigüedad ≥ 36 meses.")
		case s.AntiguedadLaboralMeses >= antiguedadCortaMeses:
			score += 5
			motivos = append(motivos, "Actividad formal con antigüedad entre 12 y 36 meses.")
		default:
			motivos = append(motivos, "Actividad formal con antigüedad < 12 meses.")
		}
	}

	// 3) Uso de capacidad crediticia
	var usoCapacidad *float64
	if s.CapacidadTotal > 0 {
		uso := s.CompromisoMensual / s.CapacidadTotal
		usoCapacidad = &uso
		switch {
		case uso <= 0.3:
			score += 15
			motivos = append(motivos, fmt.Sprintf("Uso de capacidad crediticia bajo (%.1f%%).", uso*100))
		case uso <= 0.5:
			score += 5
			motivos = append(motivos, fmt.Sprintf("Uso de capacidad crediticia moderado (%.1f%%).", uso*100))
		case uso <= 0.8:
			score -= 10
			motivos = append(motivos, fmt.Sprintf("Uso de capacidad crediticia alto (%.1f%%).", uso*100))
		default:
			score -= 20
			motivos = append(motivos, fmt.Sprintf("Uso de capacidad crediticia crítico (%.1f%%).", uso*100))
		}
	} else if s.CompromisoMensual > 0 {
		score -= 25
		motivos = append(motivos, "Compromiso mensual con capacidad crediticia total nula o no informada.")
	} else {
		motivos = append(motivos, "Sin deudas registradas y sin capacidad informada (neutro).")
	}

	// 4) Relación cuota/ingreso
	var dti *float64
	if s.IngresoMensualEstimado > 0 {
		ratio := s.CompromisoMensual / s.IngresoMensualEstimado
		dti = &ratio
		switch {
		case ratio <= 0.3:
			score += 15
			motivos = append(motivos, fmt.Sprintf("Relación cuota/ingreso cómoda (%.1f%% del ingreso).", ratio*100))
		case ratio <= 0.4:
			score += 5
			motivos = append(motivos, fmt.Sprintf("Relación cuota/ingreso moderada (%.1f%% del ingreso).", ratio*100))
		case ratio <= 0.5:
			score -= 10
			motivos = append(motivos, fmt.Sprintf("Relación cuota/ingreso elevada (%.1f%% del ingreso).", ratio*100))
		default:
			score -= 20
			motivos = append(motivos, fmt.Sprintf("Relación cuota/ingreso crítica (%.1f%% del ingreso).", ratio*100))
		}
	} else {
		motivos = append(motivos, "Sin información de ingresos estimados (neutro).")
	}

	// 5) Activos registrables
	if s.TieneVehiculosRegistrados {
		score += 5
		motivos = append(motivos, "Posee vehículos registrados a su nombre.")
	}
	if s.TieneInmueblesRegistrados {
		score += 10
		motivos = append(motivos, "Posee inmuebles/domicilios registrados a su nombre.")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var estado string
	switch {
	case score >= umbralAprobado:
		estado = domain.EstadoAprobado
	case score >= umbralRevision:
		estado = domain.EstadoRevision
	default:
		estado = domain.EstadoRechazado
	}

	return &domain.MediumRiskResult{
		Estado:       estado,
		ScoreInterno: score,
		Motivos:      motivos,
		Metricas: domain.MediumRiskMetricas{
			CapacidadTotal:            s.CapacidadTotal,
			CompromisoMensual:         s.CompromisoMensual,
			IngresoMensualEstimado:    s.IngresoMensualEstimado,
			AntiguedadMeses:           s.AntiguedadLaboralMeses,
			SituacionBcraPeor24m:      s.SituacionBcraPeor24m,
			TieneActividadFormal:      s.TieneActividadFormal,
			TieneVehiculosRegistrados: s.TieneVehiculosRegistrados,
			TieneInmueblesRegistrados: s.TieneInmueblesRegistrados,
			UsoCapacidad:              usoCapacidad,
			DTI:                       dti,
		},
	}
}
