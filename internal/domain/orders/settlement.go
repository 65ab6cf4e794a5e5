package orders

import (
	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

// SumKind selects what Sum aggregates and at which price component.
type SumKind string

const (
	// Over order lines: settled pieces × unit price component.
	SumNet      SumKind = "net"
	SumGross    SumKind = "gross"
	SumFoodcoop SumKind = "fc"

	// Over subgroup results: result × unit price component.
	SumGroups              SumKind = "groups"
	SumGroupsWithoutMarkup SumKind = "groups_without_markup"
)

// ParseSumKind validates a sum kind coming from a caller.
func ParseSumKind(s string) (SumKind, error) {
	switch k := SumKind(s); k {
	case SumNet, SumGross, SumFoodcoop, SumGroups, SumGroupsWithoutMarkup:
		return k, nil
	}
	return "", apperror.NewValidation("unknown sum kind").
		WithDetail("field", "kind").
		WithDetail("kind", s)
}

// Sum aggregates the order at the frozen prices, rounded to cents.
// Lines without a frozen price (before Close) contribute nothing.
func Sum(o *Order, kind SumKind) (types.Money, error) {
	total := types.Zero()

	switch kind {
	case SumNet, SumGross, SumFoodcoop:
		for _, l := range o.Lines {
			if l.Price == nil {
				continue
			}
			total = total.Add(types.FromUnits(l.UnitsToOrder).Mul(l.Price.Component(kind)))
		}
	case SumGroups, SumGroupsWithoutMarkup:
		prices := o.frozenPrices()
		for _, so := range o.SubgroupOrders {
			total = total.Add(subgroupValue(prices, so, kind))
		}
	default:
		return types.Zero(), apperror.NewValidation("unknown sum kind").WithDetail("kind", string(kind))
	}

	return types.RoundCents(total), nil
}

// Profit is what subgroups were charged minus the invoice net amount.
// Without an invoice it is unavailable rather than zero.
func Profit(o *Order, invoice *Invoice, excludeMarkup bool) (types.Money, error) {
	if invoice == nil {
		return types.Zero(), apperror.NewProfitUnavailable(o.ID.String())
	}
	kind := SumGroups
	if excludeMarkup {
		kind = SumGroupsWithoutMarkup
	}
	charged, err := Sum(o, kind)
	if err != nil {
		return types.Zero(), err
	}
	return charged.Sub(invoice.NetAmount), nil
}

// settledPrices values a subgroup order under both valuations, rounded to cents.
func settledPrices(prices map[id.ID]*PriceSnapshot, so SubgroupOrder) (price, withoutMarkup types.Money) {
	return types.RoundCents(subgroupValue(prices, so, SumGroups)),
		types.RoundCents(subgroupValue(prices, so, SumGroupsWithoutMarkup))
}

func subgroupValue(prices map[id.ID]*PriceSnapshot, so SubgroupOrder, kind SumKind) types.Money {
	total := types.Zero()
	for _, l := range so.Lines {
		if l.Result == nil {
			continue
		}
		p, ok := prices[l.ArticleID]
		if !ok {
			continue
		}
		total = total.Add(types.FromUnits(*l.Result).Mul(p.Component(kind)))
	}
	return total
}

func (o *Order) frozenPrices() map[id.ID]*PriceSnapshot {
	prices := make(map[id.ID]*PriceSnapshot, len(o.Lines))
	for _, l := range o.Lines {
		if l.Price != nil {
			prices[l.ArticleID] = l.Price
		}
	}
	return prices
}
