package bureau

import (
	"strings"

	"github.com/punto-financiamiento/informes/internal/domain"
)

// NormalizeDocument validates a document type and number the way the bureau
// expects them. All non-digit characters are stripped first, so "20-12345678-9"
// and "20123456789" are the same CUIT. A DNI must have 7 or 8 digits, a
// CUIT/CUIL exactly 11. Failures return an *APIError with code 12 (missing
// or unknown fields) or 13 (bad number format).
func NormalizeDocument(tipo, numero string) (domain.DocumentType, string, error) {
	tipoLower := strings.ToLower(strings.TrimSpace(tipo))
	limpio := stripNonDigits(numero)

	if tipoLower == "" || strings.TrimSpace(numero) == "" {
		return "", "", newAPIError(CodeMissingData, 400, "")
	}

	switch tipoLower {
	case "dni":
		if len(limpio) < 7 || len(limpio) > 8 {
			return "", "", newAPIError(CodeInvalidDocument, 400, "")
		}
		return domain.DocumentDNI, limpio, nil
	case "cuit", "cuil":
		if len(limpio) != 11 {
			return "", "", newAPIError(CodeInvalidDocument, 400, "")
		}
		return domain.DocumentType(tipoLower), limpio, nil
	default:
		return "", "", newAPIError(CodeMissingData, 400, "")
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
