// Package catalogsvc serves the read-only policy catalog.
package catalogsvc

import (
	"context"

	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

// Service exposes the static game catalog.
type Service struct {
	store  storage.CatalogStore
	logger *logger.Logger
}

// NewService creates the catalog service.
func NewService(store storage.CatalogStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, logger: log}
}

// ListPolicies returns every enactable policy, sorted by category then name.
func (s *Service) ListPolicies(ctx context.Context) ([]catalog.Policy, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list policies")
		return nil, err
	}
	return policies, nil
}
