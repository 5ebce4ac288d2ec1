// Package pricing holds the compiled-in price list and the quote computation.
// All money arithmetic goes through shopspring/decimal; prices are whole
// rupiah, so the final amount is truncated to an integer.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/laundryku/api/internal/enum"
)

// ErrInvalidServiceOrCategory is returned when the (service kind, category)
// pair has no entry in the price table. A zero unit price is a validation
// failure, never a free order.
var ErrInvalidServiceOrCategory = errors.New("invalid service kind or category")

// Table maps (category, service kind) to a unit price in rupiah.
// It is an immutable value; consumers receive it by injection.
type Table struct {
	byWeight map[string]int64
	byItem   map[string]int64
}

// DefaultTable returns the shop's price list.
func DefaultTable() Table {
	return Table{
		byWeight: map[string]int64{
			enum.ServiceWashOnly:    7000,
			enum.ServiceIronOnly:    4000,
			enum.ServiceWashAndIron: 10000,
		},
		byItem: map[string]int64{
			enum.ServiceWashOnly:    3000,
			enum.ServiceIronOnly:    1500,
			enum.ServiceWashAndIron: 4000,
		},
	}
}

// Quote is the priced outcome for one order.
type Quote struct {
	UnitPrice      int64
	BilledQuantity float64
	Price          int64
}

// UnitPrice looks up the unit price for the given pair.
func (t Table) UnitPrice(serviceKind, category string) (int64, bool) {
	switch category {
	case enum.CategoryByWeight:
		p, ok := t.byWeight[serviceKind]
		return p, ok
	case enum.CategoryByItem:
		p, ok := t.byItem[serviceKind]
		return p, ok
	}
	return 0, false
}

// Quote computes the total price for an order. By-weight quantities are
// rounded up to the next whole kilogram before multiplying; by-item
// quantities are billed as given. The product is truncated to whole rupiah.
func (t Table) Quote(serviceKind, category string, rawQuantity float64) (Quote, error) {
	unit, ok := t.UnitPrice(serviceKind, category)
	if !ok {
		return Quote{}, ErrInvalidServiceOrCategory
	}

	billed := BilledQuantity(category, rawQuantity)
	price := decimal.NewFromFloat(billed).Mul(decimal.NewFromInt(unit)).IntPart()

	return Quote{
		UnitPrice:      unit,
		BilledQuantity: billed,
		Price:          price,
	}, nil
}

// BilledQuantity applies the category rounding rule: a partial kilogram is
// billed as a full one, a per-piece count is billed unchanged.
func BilledQuantity(category string, rawQuantity float64) float64 {
	if category == enum.CategoryByWeight {
		return math.Ceil(rawQuantity)
	}
	return rawQuantity
}
