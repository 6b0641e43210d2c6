// Package scoring classifies a report's signals into a risk tier and, for
// the medium tier, computes the weighted internal score.
package scoring

import (
	"github.com/punto-financiamiento/informes/internal/domain"
)

// Classify maps the bureau scoring to a risk tier. A report without a
// parseable scoring is treated as MEDIO so it always goes through the
// internal scorer instead of being approved or rejected blind.
func Classify(scoring *float64) domain.RiskTier {
	if scoring == nil {
		return domain.RiskMedio
	}
	switch {
	case *scoring <= 2:
		return domain.RiskAlto
	case *scoring <= 4:
		return domain.RiskMedio
	default:
		return domain.RiskBajo
	}
}
