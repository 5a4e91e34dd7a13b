// Package order computes final pricing, builds the canonical order record,
// and commits it: primary service call first, compensating direct write
// when the primary path fails, with best-effort notification dispatch on
// the fallback.
package order

import (
	"math"

	"github.com/snapcase/snapcase/internal/config"
	"github.com/snapcase/snapcase/internal/wizard"
)

// Calculator derives price breakdowns from the configured constants. Every
// price-displaying surface and the commit path quote through the same
// calculator so the numbers cannot drift.
type Calculator struct {
	basePriceRegular int64
	basePriceMagSafe int64
	deliveryFee      int64
	taxRate          float64
}

// NewCalculator builds a calculator from configuration.
func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{
		basePriceRegular: cfg.BasePriceRegular,
		basePriceMagSafe: cfg.BasePriceMagSafe,
		deliveryFee:      cfg.DeliveryFee,
		taxRate:          cfg.TaxRate,
	}
}

// Quote implements wizard.Pricer. All amounts are cents; tax is rounded
// half up on the subtotal.
func (c *Calculator) Quote(caseType wizard.CaseType, method wizard.Method) wizard.Pricing {
	base := c.basePriceRegular
	if caseType == wizard.CaseMagSafe {
		base = c.basePriceMagSafe
	}
	var fee int64
	if method == wizard.MethodDelivery {
		fee = c.deliveryFee
	}
	subtotal := base + fee
	tax := int64(math.Round(float64(subtotal) * c.taxRate))
	return wizard.Pricing{
		BasePrice:   base,
		DeliveryFee: fee,
		Subtotal:    subtotal,
		TaxRate:     c.taxRate,
		TaxAmount:   tax,
		Total:       subtotal + tax,
	}
}
