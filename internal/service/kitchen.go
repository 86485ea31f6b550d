package service

import (
	"sort"
	"time"

	"github.com/sunbrew/cafe-order-api/internal/models"
)

// KitchenItemGroup is one category's line items on a kitchen ticket
type KitchenItemGroup struct {
	CategoryName string               `json:"category_name"`
	Items        []models.KitchenItem `json:"items"`
}

// KitchenOrderView is one ticket on the kitchen display. All time fields
// are computed against the snapshot time, never stored.
type KitchenOrderView struct {
	OrderID             int64              `json:"order_id"`
	OrderNumber         string             `json:"order_number"`
	Status              models.OrderStatus `json:"status"`
	SpecialInstructions *string            `json:"special_instructions,omitempty"`
	ItemsByCategory     []KitchenItemGroup `json:"items_by_category"`
	ElapsedMinutes      int                `json:"elapsed_minutes"`
	TotalPrepMinutes    int                `json:"total_prep_time"`
	EstimatedReadyAt    time.Time          `json:"estimated_ready_at"`
	RemainingMinutes    int                `json:"remaining_minutes"`
	CreatedAt           time.Time          `json:"created_at"`
}

// BuildKitchenProjection turns a snapshot of active orders into the kitchen
// display. Preparing orders sort before confirmed ones regardless of age;
// within the same status, older orders come first. Elapsed minutes are
// floored, and remaining minutes never go below zero for overdue orders.
func BuildKitchenProjection(now time.Time, orders []models.KitchenOrder) []KitchenOrderView {
	sorted := make([]models.KitchenOrder, len(orders))
	copy(sorted, orders)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Status.KitchenPriority(), sorted[j].Status.KitchenPriority()
		if pi != pj {
			return pi < pj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	views := make([]KitchenOrderView, 0, len(sorted))
	for _, order := range sorted {
		prep := order.TotalPrepMinutes()
		readyAt := order.CreatedAt.Add(time.Duration(prep) * time.Minute)

		elapsed := int(now.Sub(order.CreatedAt).Minutes())
		if elapsed < 0 {
			elapsed = 0
		}

		remaining := int(readyAt.Sub(now).Minutes())
		if remaining < 0 {
			remaining = 0
		}

		views = append(views, KitchenOrderView{
			OrderID:             order.ID,
			OrderNumber:         order.OrderNumber,
			Status:              order.Status,
			SpecialInstructions: order.SpecialInstructions,
			ItemsByCategory:     groupByCategory(order.Items),
			ElapsedMinutes:      elapsed,
			TotalPrepMinutes:    prep,
			EstimatedReadyAt:    readyAt,
			RemainingMinutes:    remaining,
			CreatedAt:           order.CreatedAt,
		})
	}

	return views
}

// groupByCategory groups ticket items by category name, preserving the
// order categories first appear in the item list so the grouping is
// deterministic for a given snapshot
func groupByCategory(items []models.KitchenItem) []KitchenItemGroup {
	groups := make([]KitchenItemGroup, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		i, ok := index[item.CategoryName]
		if !ok {
			i = len(groups)
			index[item.CategoryName] = i
			groups = append(groups, KitchenItemGroup{CategoryName: item.CategoryName})
		}
		groups[i].Items = append(groups[i].Items, item)
	}

	return groups
}
