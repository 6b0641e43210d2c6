package bureau

import (
	"fmt"
)

// Upstream error codes returned by the bureau API. Codes 12 and 13 are also
// produced locally by document validation so callers see one error shape.
const (
	CodeInvalidAPIKey   = 11
	CodeMissingData     = 12
	CodeInvalidDocument = 13
	CodeServiceOutage   = 14
	CodeReportFailed    = 15
	CodeNotFound        = 16
	CodePDFFailed       = 17
	CodeForbidden       = 18
	CodeInvalidDomain   = 19
	CodeHomonymousFound = 20
)

// APIError is a bureau failure with its upstream error code. Mensaje is the
// operator-facing Spanish message; it never leaks upstream internals beyond
// the code description.
type APIError struct {
	Codigo     int    `json:"codigo,omitempty"`
	HTTPStatus int    `json:"-"`
	Mensaje    string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Mensaje
}

var codeDescriptions = map[int]string{
	CodeInvalidAPIKey:   "Api_key inválida",
	CodeMissingData:     "Faltan datos necesarios",
	CodeInvalidDocument: "CUIT/CUIL o DNI inválido",
	CodeServiceOutage:   "Corte del servicio",
	CodeReportFailed:    "Error al obtener el informe",
	CodeNotFound:        "No se encontró información",
	CodePDFFailed:       "No se pudo generar el PDF",
	CodeForbidden:       "No tiene acceso a ese recurso",
	CodeInvalidDomain:   "Dominio inválido",
	CodeHomonymousFound: "Se encontró DNI con homónimos",
}

// MessageForCode builds the standard operator-facing message for a bureau
// error code. For service outages the upstream message is appended as the
// motive; unknown codes get the generic form without a description.
func MessageForCode(codigo int, mensajeAPI string) string {
	desc, ok := codeDescriptions[codigo]
	if !ok {
		return fmt.Sprintf("Error interno, código %d. Consulte a un administrador.", codigo)
	}
	if codigo == CodeServiceOutage && mensajeAPI != "" {
		desc = fmt.Sprintf("%s, motivo: %s", desc, mensajeAPI)
	}
	return fmt.Sprintf("Error interno, código %d (%s). Consulte a un administrador.", codigo, desc)
}

func newAPIError(codigo, httpStatus int, mensajeAPI string) *APIError {
	return &APIError{
		Codigo:     codigo,
		HTTPStatus: httpStatus,
		Mensaje:    MessageForCode(codigo, mensajeAPI),
	}
}
