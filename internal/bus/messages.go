package bus

import (
	"encoding/json"
	"fmt"

	"github.com/punto-financiamiento/informes/internal/domain"
)

// ConsultaMessage is the payload published on TopicConsultaSolicitada to
// request an async consulta.
type ConsultaMessage struct {
	ConsultaID    string `json:"consultaId,omitempty"`
	TenantID      string `json:"tenantId"`
	TraceID       string `json:"traceId"`
	TipoDocumento string `json:"tipoDocumento"`
	Numero        string `json:"numero"`
	Usuario       string `json:"usuario,omitempty"`
}

// ErrorMessage is the payload published on TopicConsultaError when a
// consulta fails before producing an evaluation.
type ErrorMessage struct {
	ConsultaID string `json:"consultaId,omitempty"`
	Numero     string `json:"numero"`
	Error      string `json:"error"`
}

// ParseConsultaMessage decodes a consulta request from a bus message.
func ParseConsultaMessage(msg *domain.Message) (*ConsultaMessage, error) {
	var cMsg ConsultaMessage
	if err := json.Unmarshal(msg.Payload, &cMsg); err != nil {
		return nil, fmt.Errorf("invalid consulta message %s: %w", msg.ID, err)
	}
	return &cMsg, nil
}

// ErrorPayload builds the TopicConsultaError payload for a failed consulta.
func ErrorPayload(consultaID, numero string, cause error) []byte {
	payload, _ := json.Marshal(&ErrorMessage{
		ConsultaID: consultaID,
		Numero:     numero,
		Error:      cause.Error(),
	})
	return payload
}
