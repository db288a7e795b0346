package pricing

import (
	"unicode/utf8"

	"cakestudio/internal/catalog"
	"cakestudio/internal/order"
)

// LongLetteringRunes is the tiering threshold for the long-lettering fee.
// Lettering of 10 runes or more pays the surcharge, 9 does not.
const LongLetteringRunes = 10

// Calculate returns the total price for an order. Unknown size or filling
// keys contribute zero instead of failing; the function is pure and has no
// error path.
func Calculate(o order.Order, m catalog.Menu) int {
	total := m.Sizes[o.Size] + m.Fillings[o.Filling] + m.BaseCustom

	if o.HasImage {
		total += m.Extras.Image
	}
	if o.HasColor {
		total += m.Extras.Color
	}
	total += o.ObjectCount * m.Extras.Object
	if utf8.RuneCountInString(o.Lettering) >= LongLetteringRunes {
		total += m.Extras.LongLettering
	}
	return total
}

// LineItem is one surcharge row in a quote breakdown.
type LineItem struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// Breakdown lists the extras currently applied to the order, for the live
// order summary and the final quote.
func Breakdown(o order.Order, m catalog.Menu) []LineItem {
	var items []LineItem
	if o.HasImage {
		items = append(items, LineItem{Label: "사진 추가", Amount: m.Extras.Image})
	}
	if o.HasColor {
		items = append(items, LineItem{Label: "색상 변경", Amount: m.Extras.Color})
	}
	if o.ObjectCount > 0 {
		items = append(items, LineItem{Label: "오브제 추가", Amount: o.ObjectCount * m.Extras.Object})
	}
	if utf8.RuneCountInString(o.Lettering) >= LongLetteringRunes {
		items = append(items, LineItem{Label: "긴 레터링", Amount: m.Extras.LongLettering})
	}
	return items
}
