// Batch consulta tool for running document lists against a running
// Informes instance.
//
// Usage:
//   go run cmd/lote/main.go -csv /path/to/numeros.csv -url http://localhost:8080 -token <admin-token>
//
// This tool:
//   1. Reads a CSV of document numbers (one per row, header optional)
//   2. Sends them in batches to POST /api/informes/lote
//   3. Tallies risk tiers, offers and errors
//   4. Prints a summary with throughput figures
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// LoteRequest is the Informes batch API request format. One document type
// covers the whole batch.
type LoteRequest struct {
	TipoDocumento string   `json:"tipoDocumento"`
	Numeros       []string `json:"numeros"`
}

// LoteItemResult mirrors one entry of the batch API response.
type LoteItemResult struct {
	Numero    string          `json:"numero"`
	Resultado *ConsultaResult `json:"resultado,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ConsultaResult is the subset of the consulta response the tool reports on.
type ConsultaResult struct {
	Riesgo        string `json:"riesgo"`
	RiesgoInterno *struct {
		Estado       string  `json:"estado"`
		ScoreInterno float64 `json:"scoreInterno"`
	} `json:"riesgoInterno,omitempty"`
	Situacion5 *struct {
		Monto  int64 `json:"monto"`
		Cuotas int   `json:"cuotas"`
	} `json:"situacion5,omitempty"`
}

// LoteResponse is the Informes batch API response format.
type LoteResponse struct {
	Resultados []LoteItemResult `json:"resultados"`
	Total      int              `json:"total"`
	DuracionMs int64            `json:"duracionMs"`
}

// Metrics tracks batch results.
type Metrics struct {
	TotalProcessed int
	TotalErrors    int

	RiesgoBajo  int
	RiesgoMedio int
	RiesgoAlto  int

	Aprobados   int
	EnRevision  int
	Rechazados  int
	ConOferta   int
	MontoOferta float64
}

const maxBatchSize = 100

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to CSV file of document numbers")
	tipo := flag.String("tipo", "dni", "Document type for the whole batch (dni, cuit, cuil)")
	baseURL := flag.String("url", "http://localhost:8080", "Informes base URL")
	tenantID := flag.String("tenant", "lote-test", "Tenant ID for requests")
	token := flag.String("token", "", "Admin bearer token (required when auth is enabled)")
	batchSize := flag.Int("batch", maxBatchSize, "Documents per batch request (max 100)")
	limit := flag.Int("limit", 0, "Maximum documents to process (0 = all)")
	verbose := flag.Bool("verbose", false, "Print each document result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: lote -csv /path/to/numeros.csv [-url http://localhost:8080] [-token <admin-token>]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *batchSize <= 0 || *batchSize > maxBatchSize {
		*batchSize = maxBatchSize
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          INFORMES LOTE - Consulta masiva de documentos        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Tipo:         %s\n", *tipo)
	fmt.Printf("Informes URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:    %s\n", *tenantID)
	fmt.Printf("Batch Size:   %d\n", *batchSize)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	// Check Informes is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Informes not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Informes is running:")
		fmt.Println("  go run cmd/informes/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Informes is healthy")

	// Read document list
	fmt.Printf("\nReading documents from %s...\n", *csvPath)
	numeros, err := readNumerosCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d documents\n", len(numeros))

	// Run batches
	fmt.Printf("\nRunning %d batch(es)...\n", (len(numeros)+*batchSize-1) / *batchSize)
	startTime := time.Now()
	metrics := runLote(numeros, *tipo, *baseURL, *tenantID, *token, *batchSize, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readNumerosCSV(path string, limit int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var numeros []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		if len(record) == 0 {
			continue
		}

		numero := strings.TrimSpace(record[0])

		// Skip a header row
		if strings.EqualFold(numero, "numero") {
			continue
		}
		if numero == "" {
			continue
		}

		numeros = append(numeros, numero)

		if limit > 0 && len(numeros) >= limit {
			break
		}
	}

	return numeros, nil
}

func runLote(numeros []string, tipo, baseURL, tenantID, token string, batchSize int, verbose bool) *Metrics {
	metrics := &Metrics{}
	client := &http.Client{Timeout: 5 * time.Minute}

	for start := 0; start < len(numeros); start += batchSize {
		end := start + batchSize
		if end > len(numeros) {
			end = len(numeros)
		}

		result, err := postLote(client, baseURL, tenantID, token, tipo, numeros[start:end])
		if err != nil {
			fmt.Printf("ERROR: batch %d-%d failed: %v\n", start, end-1, err)
			metrics.TotalErrors += end - start
			metrics.TotalProcessed += end - start
			continue
		}

		for _, item := range result.Resultados {
			metrics.TotalProcessed++

			if item.Error != "" || item.Resultado == nil {
				metrics.TotalErrors++
				if verbose {
					fmt.Printf("✗ %-12s | Error: %s\n", item.Numero, item.Error)
				}
				continue
			}

			switch item.Resultado.Riesgo {
			case "BAJO":
				metrics.RiesgoBajo++
			case "MEDIO":
				metrics.RiesgoMedio++
			case "ALTO":
				metrics.RiesgoAlto++
			}

			if interno := item.Resultado.RiesgoInterno; interno != nil {
				switch interno.Estado {
				case "APROBADO":
					metrics.Aprobados++
				case "REVISION":
					metrics.EnRevision++
				case "RECHAZADO":
					metrics.Rechazados++
				}
			}

			if oferta := item.Resultado.Situacion5; oferta != nil {
				metrics.ConOferta++
				metrics.MontoOferta += float64(oferta.Monto)
			}

			if verbose {
				estado := "-"
				if item.Resultado.RiesgoInterno != nil {
					estado = item.Resultado.RiesgoInterno.Estado
				}
				fmt.Printf("✓ %-12s | Riesgo: %-5s | Interno: %-9s | Oferta: %v\n",
					item.Numero,
					item.Resultado.Riesgo,
					estado,
					item.Resultado.Situacion5 != nil,
				)
			}
		}
	}

	return metrics
}

func postLote(client *http.Client, baseURL, tenantID, token, tipo string, numeros []string) (*LoteResponse, error) {
	body, err := json.Marshal(LoteRequest{TipoDocumento: tipo, Numeros: numeros})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/informes/lote", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result LoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        LOTE RESULTS                           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DOCUMENTOS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	ok := m.TotalProcessed - m.TotalErrors
	fmt.Printf("\n📈 CLASIFICACIÓN DE RIESGO\n")
	fmt.Printf("   BAJO:   %6d  (%s)\n", m.RiesgoBajo, pct(m.RiesgoBajo, ok))
	fmt.Printf("   MEDIO:  %6d  (%s)\n", m.RiesgoMedio, pct(m.RiesgoMedio, ok))
	fmt.Printf("   ALTO:   %6d  (%s)\n", m.RiesgoAlto, pct(m.RiesgoAlto, ok))

	if m.Aprobados+m.EnRevision+m.Rechazados > 0 {
		fmt.Printf("\n🎯 RIESGO INTERNO (MEDIO)\n")
		fmt.Printf("   APROBADO:   %6d\n", m.Aprobados)
		fmt.Printf("   REVISION:   %6d\n", m.EnRevision)
		fmt.Printf("   RECHAZADO:  %6d\n", m.Rechazados)
	}

	if m.ConOferta > 0 {
		fmt.Printf("\n💰 OFERTAS SITUACIÓN 5\n")
		fmt.Printf("   Con Oferta:      %d\n", m.ConOferta)
		fmt.Printf("   Monto Promedio:  $%.2f\n", m.MontoOferta/float64(m.ConOferta))
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Throughput:       %.2f docs/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}

func pct(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}
