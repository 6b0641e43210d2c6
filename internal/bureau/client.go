// Package bureau talks to the upstream credit-bureau API and validates the
// document numbers it is queried with.
package bureau

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/punto-financiamiento/informes/internal/domain"
)

const (
	pathInformeCUIT = "/api/informeApi/obtenerInforme"
	pathInformeDNI  = "/api/informeApi/obtenerInformeDni"

	// tipoNormal is the only report flavor this service requests.
	tipoNormal = "normal"
)

// Client fetches reports from the bureau API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a bureau client from config.
func NewClient(cfg domain.BureauConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Report is a fetched bureau report with its envelope metadata.
type Report struct {
	Informe domain.RawReport
	Fecha   string
}

// FetchReport requests a report for an already-normalized document. The
// bureau uses a different endpoint and form field for DNI than for
// CUIT/CUIL. Upstream failures come back as *APIError with the bureau's
// error code when one was present.
func (c *Client) FetchReport(ctx context.Context, tipo domain.DocumentType, numero string) (*Report, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("bureau api key is not configured")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	form.WriteField("apiKey", c.apiKey)
	form.WriteField("tipo", tipoNormal)

	var path string
	switch tipo {
	case domain.DocumentCUIT, domain.DocumentCUIL:
		path = pathInformeCUIT
		form.WriteField("cuit", numero)
	case domain.DocumentDNI:
		path = pathInformeDNI
		form.WriteField("dni", numero)
	default:
		return nil, newAPIError(CodeMissingData, 400, "")
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bureau request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bureau response: %w", err)
	}

	c.logger.Debug("bureau response",
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds())

	var envelope map[string]any
	// A non-JSON body is tolerated; the status code decides below.
	_ = json.Unmarshal(raw, &envelope)

	codigo, mensajeAPI := extractErrorCode(envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if codigo != 0 {
			return nil, newAPIError(codigo, resp.StatusCode, mensajeAPI)
		}
		if mensajeAPI != "" {
			return nil, &APIError{HTTPStatus: resp.StatusCode, Mensaje: mensajeAPI}
		}
		return nil, &APIError{
			HTTPStatus: resp.StatusCode,
			Mensaje:    fmt.Sprintf("Error desde API del bureau (HTTP %d)", resp.StatusCode),
		}
	}

	informe, fecha := extractInforme(envelope)
	if informe == nil {
		if codigo != 0 {
			return nil, newAPIError(codigo, 400, mensajeAPI)
		}
		if mensajeAPI != "" {
			return nil, &APIError{HTTPStatus: 400, Mensaje: mensajeAPI}
		}
		return nil, &APIError{HTTPStatus: 400, Mensaje: "No se pudo obtener el informe"}
	}

	return &Report{Informe: informe, Fecha: fecha}, nil
}

// extractInforme pulls data.informe and data.fecha out of the envelope.
func extractInforme(envelope map[string]any) (domain.RawReport, string) {
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		return nil, ""
	}
	informe, ok := data["informe"].(map[string]any)
	if !ok {
		return nil, ""
	}
	fecha, _ := data["fecha"].(string)
	return domain.RawReport(informe), fecha
}

// extractErrorCode pulls the bureau error code and message out of the
// envelope. The code may live in metadata.codigo, metadata.code or at the
// top level, as a number or a numeric string.
func extractErrorCode(envelope map[string]any) (int, string) {
	if envelope == nil {
		return 0, ""
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		metadata, _ = envelope["meta"].(map[string]any)
	}

	var codigo int
	for _, candidate := range []any{
		mapValue(metadata, "codigo"),
		mapValue(metadata, "code"),
		envelope["codigo"],
	} {
		if c := asCode(candidate); c != 0 {
			codigo = c
			break
		}
	}

	mensaje, _ := mapValue(metadata, "message").(string)
	if mensaje == "" {
		mensaje, _ = envelope["message"].(string)
	}

	return codigo, mensaje
}

func mapValue(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func asCode(v any) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case string:
		n, err := strconv.Atoi(c)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
