package repository

import (
	"context"
	"fmt"

	"github.com/sunbrew/cafe-order-api/internal/database"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

// MenuRepository is the read-only view of the catalog collaborator's data.
// Catalog management itself lives outside this service.
type MenuRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewMenuRepository creates a new MenuRepository
func NewMenuRepository(db *database.Database, logger logger.Logger) *MenuRepository {
	return &MenuRepository{
		db:     db,
		logger: logger,
	}
}

// ListMenu returns available menu items grouped by active category.
// Categories without available items are dropped.
func (r *MenuRepository) ListMenu(ctx context.Context) ([]models.MenuCategory, error) {
	var categories []models.Category
	err := r.db.DB.SelectContext(ctx, &categories, `
		SELECT id, name, is_active
		FROM categories
		WHERE is_active = true
		ORDER BY name`)

	if err != nil {
		r.logger.Error("Failed to get categories", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	var items []models.MenuItem
	err = r.db.DB.SelectContext(ctx, &items, `
		SELECT m.id, m.category_id, m.name, m.description, m.price,
		       m.preparation_time, m.is_available, c.name AS category_name
		FROM menu_items m
		JOIN categories c ON c.id = m.category_id
		WHERE m.is_available = true
		ORDER BY c.name, m.name`)

	if err != nil {
		r.logger.Error("Failed to get menu items", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	itemsByCategory := make(map[int64][]models.MenuItem, len(categories))
	for _, item := range items {
		itemsByCategory[item.CategoryID] = append(itemsByCategory[item.CategoryID], item)
	}

	menu := make([]models.MenuCategory, 0, len(categories))
	for _, category := range categories {
		categoryItems := itemsByCategory[category.ID]
		if len(categoryItems) == 0 {
			continue
		}
		menu = append(menu, models.MenuCategory{
			Category: category,
			Items:    categoryItems,
		})
	}

	return menu, nil
}
