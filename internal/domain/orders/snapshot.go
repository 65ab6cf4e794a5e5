package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

// ArticlePrice is the catalog price of an article as the price store knows it.
type ArticlePrice struct {
	ArticleID    id.ID
	NetPrice     types.Money
	Tax          decimal.Decimal // percent
	Deposit      types.Money
	UnitQuantity int // pieces per supplier package
}

// PriceSnapshot is the settlement price of one order line, frozen at Close.
// It has no setters: every sum, profit and ledger posting after Close reads
// the same four components from it.
type PriceSnapshot struct {
	net          types.Money
	tax          decimal.Decimal
	deposit      types.Money
	markup       decimal.Decimal
	unitQuantity int
	frozenAt     time.Time
}

// NewPriceSnapshot freezes p with the configured foodcoop markup.
func NewPriceSnapshot(p ArticlePrice, markup decimal.Decimal, at time.Time) (*PriceSnapshot, error) {
	if p.NetPrice.IsNegative() || p.Tax.IsNegative() || p.Deposit.IsNegative() || markup.IsNegative() {
		return nil, apperror.NewSettlement("price components must not be negative").
			WithDetail("article_id", p.ArticleID.String())
	}
	unitQuantity := p.UnitQuantity
	if unitQuantity < 1 {
		unitQuantity = 1
	}
	return &PriceSnapshot{
		net:          p.NetPrice,
		tax:          p.Tax,
		deposit:      p.Deposit,
		markup:       markup,
		unitQuantity: unitQuantity,
		frozenAt:     at.UTC(),
	}, nil
}

// RestorePriceSnapshot rebuilds a stored snapshot. Only storage adapters call it.
func RestorePriceSnapshot(net, tax, deposit, markup decimal.Decimal, unitQuantity int, frozenAt time.Time) *PriceSnapshot {
	return &PriceSnapshot{
		net:          net,
		tax:          tax,
		deposit:      deposit,
		markup:       markup,
		unitQuantity: max(unitQuantity, 1),
		frozenAt:     frozenAt,
	}
}

func (p *PriceSnapshot) Net() types.Money { return p.net }
func (p *PriceSnapshot) Tax() decimal.Decimal { return p.tax }
func (p *PriceSnapshot) Deposit() types.Money { return p.deposit }
func (p *PriceSnapshot) Markup() decimal.Decimal { return p.markup }
func (p *PriceSnapshot) UnitQuantity() int { return p.unitQuantity }
func (p *PriceSnapshot) FrozenAt() time.Time { return p.frozenAt }

// Gross is the price members pay before markup: (net + deposit) plus tax.
func (p *PriceSnapshot) Gross() types.Money {
	return types.AddPercent(p.net.Add(p.deposit), p.tax)
}

// FoodcoopPrice is gross plus the foodcoop markup.
func (p *PriceSnapshot) FoodcoopPrice() types.Money {
	return types.AddPercent(p.Gross(), p.markup)
}

// Component selects the unit price a sum kind is valued at.
func (p *PriceSnapshot) Component(kind SumKind) types.Money {
	switch kind {
	case SumNet:
		return p.net
	case SumGross, SumGroupsWithoutMarkup:
		return p.Gross()
	default:
		return p.FoodcoopPrice()
	}
}

// MarshalJSON renders the components along with the derived prices.
func (p *PriceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Net           types.Money     `json:"net"`
		Tax           decimal.Decimal `json:"tax"`
		Deposit       types.Money     `json:"deposit"`
		Markup        decimal.Decimal `json:"markup"`
		UnitQuantity  int             `json:"unitQuantity"`
		Gross         types.Money     `json:"gross"`
		FoodcoopPrice types.Money     `json:"foodcoopPrice"`
		FrozenAt      time.Time       `json:"frozenAt"`
	}{
		Net:           p.net,
		Tax:           p.tax,
		Deposit:       p.deposit,
		Markup:        p.markup,
		UnitQuantity:  p.unitQuantity,
		Gross:         p.Gross(),
		FoodcoopPrice: p.FoodcoopPrice(),
		FrozenAt:      p.frozenAt,
	})
}
