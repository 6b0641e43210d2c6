// Package velocity counts recent consultas per document.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/punto-financiamiento/informes/internal/domain"
)

// Service counts how often a document has been queried recently. The count
// feeds the rule engine's consultas_recientes variable.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetConsultaCount returns the number of consultas for a document within a
// time window. This is the VelocityGetter signature the rule engine expects.
func (s *Service) GetConsultaCount(ctx context.Context, tenantID, numero string, windowSecs int) (int64, error) {
	if tenantID == "" || numero == "" {
		return 0, fmt.Errorf("tenantID and numero are required")
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	consultas, err := s.repo.GetConsultasByDocumento(ctx, tenantID, numero, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get consultas: %w", err)
	}
	return int64(len(consultas)), nil
}

// GetVelocityGetter returns a VelocityGetter function for the rule engine.
func (s *Service) GetVelocityGetter() func(ctx context.Context, tenantID, numero string, windowSecs int) (int64, error) {
	return s.GetConsultaCount
}
