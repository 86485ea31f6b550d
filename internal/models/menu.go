package models

import (
	"github.com/shopspring/decimal"
)

// Category is a menu category from the catalog
type Category struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// MenuItem is a catalog item. Price and preparation time are the live
// catalog values; orders snapshot them at placement time.
type MenuItem struct {
	ID              int64           `db:"id" json:"id"`
	CategoryID      int64           `db:"category_id" json:"category_id"`
	CategoryName    string          `db:"category_name" json:"category_name,omitempty"`
	Name            string          `db:"name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	Price           decimal.Decimal `db:"price" json:"price"`
	PreparationTime int             `db:"preparation_time" json:"preparation_time"`
	IsAvailable     bool            `db:"is_available" json:"is_available"`
}

// MenuCategory is one category with its available items, as served to
// the customer-facing menu
type MenuCategory struct {
	Category
	Items []MenuItem `json:"items"`
}
