package models

// KitchenItem is an order line joined with the catalog attributes the
// kitchen needs: preparation time and category.
type KitchenItem struct {
	MenuItemID      int64  `db:"menu_item_id" json:"menu_item_id"`
	Name            string `db:"name" json:"name"`
	Quantity        int    `db:"quantity" json:"quantity"`
	PreparationTime int    `db:"preparation_time" json:"preparation_time"`
	CategoryName    string `db:"category_name" json:"category_name"`
}

// KitchenOrder is the raw snapshot of one active order handed to the
// kitchen projection builder.
type KitchenOrder struct {
	Order
	Items []KitchenItem
}

// TotalPrepMinutes sums preparation time times quantity over all items
func (k KitchenOrder) TotalPrepMinutes() int {
	total := 0
	for _, item := range k.Items {
		total += item.PreparationTime * item.Quantity
	}
	return total
}
