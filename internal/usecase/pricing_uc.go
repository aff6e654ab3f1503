package usecase

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PricingUseCase turns a conversion's page count into a quote. Pure and
// deterministic: identical inputs always produce identical amounts, which is
// what makes billing reproducible.
type PricingUseCase interface {
	// Quote returns the price in major units, rounded to two decimals.
	// Pages within the free allowance cost nothing.
	Quote(pageCount int) decimal.Decimal
	// QuoteCents returns the same quote in minor units.
	QuoteCents(pageCount int) int64
	FreePageLimit() int
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	unitPrice decimal.Decimal // per page past the free allowance
	freePages int
	log       *zerolog.Logger
}

func NewPricingUseCase(unitPrice decimal.Decimal, freePages int, logger *zerolog.Logger) PricingUseCase {
	l := logger.With().Str("component", "PricingUseCase").Logger()
	return &pricingUC{unitPrice: unitPrice, freePages: freePages, log: &l}
}

func (p *pricingUC) Quote(pageCount int) decimal.Decimal {
	if pageCount <= p.freePages {
		return decimal.Zero
	}
	billable := int64(pageCount - p.freePages)
	return p.unitPrice.Mul(decimal.NewFromInt(billable)).Round(2)
}

func (p *pricingUC) QuoteCents(pageCount int) int64 {
	return p.Quote(pageCount).Shift(2).IntPart()
}

func (p *pricingUC) FreePageLimit() int { return p.freePages }
