package config

import (
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/engine"
)

// ToInput converts the deal file into an engine input, resolving asOf
// against the current date.
func (c *Configuration) ToInput() (engine.Input, error) {
	return c.ToInputWithFixedTime(time.Now())
}

// ToInputWithFixedTime converts the deal file into an engine input with an
// injectable current date.
func (c *Configuration) ToInputWithFixedTime(fixedTime time.Time) (engine.Input, error) {
	asOf, err := c.AsOfDateWithFixedTime(fixedTime)
	if err != nil {
		return engine.Input{}, err
	}
	positions, err := c.ToPositions()
	if err != nil {
		return engine.Input{}, err
	}
	return engine.Input{
		Positions:      positions,
		Settings:       c.Settings.ToSettings(),
		MonthlyRevenue: c.Merchant.MonthlyRevenue,
		AsOf:           asOf,
	}, nil
}
