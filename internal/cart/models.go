package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the snapshot of catalog data the cart keeps for a line item.
// A nil Stock means the product has no stock ceiling.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int64          `json:"stock,omitempty"`
}

// clamp bounds q to [0, stock].
func (p Product) clamp(q int64) int64 {
	if p.Stock != nil && q > *p.Stock {
		q = *p.Stock
	}
	if q < 0 {
		q = 0
	}
	return q
}

func (p Product) label() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Product (id %d)", p.ID)
}

// LineItem is one product in the cart with its quantity and priced subtotal.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Product   Product         `json:"product"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // frozen at first add
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func (it *LineItem) setQuantity(q int64) {
	it.Quantity = q
	it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(q))
}

// OrderItem is the per-line payload handed to order submission.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// StockOf returns a stock ceiling of n for a Product snapshot.
func StockOf(n int64) *int64 { return &n }
