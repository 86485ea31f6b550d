package service

import (
	"context"

	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

// MenuStore is the catalog read surface the menu service depends on
type MenuStore interface {
	ListMenu(ctx context.Context) ([]models.MenuCategory, error)
}

// MenuService exposes the read-only menu used by ordering clients
type MenuService struct {
	store  MenuStore
	logger logger.Logger
}

// NewMenuService creates a new MenuService
func NewMenuService(store MenuStore, logger logger.Logger) *MenuService {
	return &MenuService{
		store:  store,
		logger: logger,
	}
}

// GetMenu returns available items grouped by active category
func (s *MenuService) GetMenu(ctx context.Context) ([]models.MenuCategory, error) {
	menu, err := s.store.ListMenu(ctx)

	if err != nil {
		s.logger.Error("Failed to fetch menu", "error", err)
		return nil, err
	}

	return menu, nil
}
