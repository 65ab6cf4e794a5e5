package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"foodcoop/internal/domain/allocation"
)

// Config holds the settlement settings injected into the Service.
type Config struct {
	// Markup is the foodcoop surcharge in percent, frozen into price snapshots at Close.
	Markup decimal.Decimal

	// Policy ranks subgroup requests during allocation. Defaults to first come, first served.
	Policy allocation.Policy

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Policy == nil {
		c.Policy = allocation.FirstComeFirstServed{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
