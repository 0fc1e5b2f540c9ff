// Package config defines the data structures of a deal file and includes
// functions for loading, validating and converting it.
package config

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/validation"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DateLayout is the format expected in deal files and is also the output
// date format.
const DateLayout = constants.DateLayout

// Configuration holds one deal and the settings for rendering it.
type Configuration struct {
	Logging   LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Output    OutputConfig  `yaml:"output,omitempty" json:"output,omitempty"`
	Merchant  Merchant      `yaml:"merchant" json:"merchant"`
	AsOf      string        `yaml:"asOf,omitempty" json:"asOf,omitempty"`
	Settings  Settings      `yaml:"settings" json:"settings"`
	Positions []Position    `yaml:"positions" json:"positions"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" json:"level,omitempty"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" json:"format,omitempty"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" json:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // pretty, csv, json
}

// Merchant describes the business whose positions are consolidated.
type Merchant struct {
	Name           string  `yaml:"name" json:"name"`
	BusinessType   string  `yaml:"businessType,omitempty" json:"businessType,omitempty"`
	MonthlyRevenue float64 `yaml:"monthlyRevenue" json:"monthlyRevenue"`
}

// Settings holds the deal parameters.
type Settings struct {
	DailyPaymentDecrease float64        `yaml:"dailyPaymentDecrease" json:"dailyPaymentDecrease"`
	TermDays             *int           `yaml:"termDays,omitempty" json:"termDays,omitempty"`
	DailyPaymentOverride *float64       `yaml:"dailyPaymentOverride,omitempty" json:"dailyPaymentOverride,omitempty"`
	FeePercent           float64        `yaml:"feePercent" json:"feePercent"`
	FeeSchedule          string         `yaml:"feeSchedule,omitempty" json:"feeSchedule,omitempty"`
	Rate                 float64        `yaml:"rate" json:"rate"`
	NewMoney             float64        `yaml:"newMoney,omitempty" json:"newMoney,omitempty"`
	BrokerCommission     float64        `yaml:"brokerCommission,omitempty" json:"brokerCommission,omitempty"`
	EarlyPayOptions      []EarlyPayTier `yaml:"earlyPayOptions,omitempty" json:"earlyPayOptions,omitempty"`
}

// EarlyPayTier is one early payoff discount offer.
type EarlyPayTier struct {
	DaysAfterFalloff int     `yaml:"daysAfterFalloff" json:"daysAfterFalloff"`
	DiscountPercent  float64 `yaml:"discountPercent" json:"discountPercent"`
}

// Position is one existing funder's advance as written in the deal file.
// An absent balance means unknown; an absent includeInReverse means true.
type Position struct {
	ID               int      `yaml:"id" json:"id"`
	Entity           string   `yaml:"entity" json:"entity"`
	Balance          *float64 `yaml:"balance,omitempty" json:"balance,omitempty"`
	DailyPayment     float64  `yaml:"dailyPayment" json:"dailyPayment"`
	IsOurPosition    bool     `yaml:"isOurPosition,omitempty" json:"isOurPosition,omitempty"`
	IncludeInReverse *bool    `yaml:"includeInReverse,omitempty" json:"includeInReverse,omitempty"`
	FundedDate       string   `yaml:"fundedDate,omitempty" json:"fundedDate,omitempty"`
	AmountFunded     *float64 `yaml:"amountFunded,omitempty" json:"amountFunded,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// deal file there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted deal from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yml")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeToDateStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&configuration, hook); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// timeToDateStringHook turns YAML timestamps such as an unquoted
// `asOf: 2026-02-02` back into DateLayout strings.
func timeToDateStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to.Kind() != reflect.String {
			return data, nil
		}
		if t, ok := data.(time.Time); ok {
			return t.Format(DateLayout), nil
		}
		return data, nil
	}
}

// Marshal renders the configuration back to YAML.
func (c *Configuration) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// AsOfDate returns the date balances are estimated at: the configured asOf,
// or today when it is unset.
func (c *Configuration) AsOfDate() (time.Time, error) {
	return c.AsOfDateWithFixedTime(time.Now())
}

// AsOfDateWithFixedTime resolves asOf, substituting fixedTime when unset.
func (c *Configuration) AsOfDateWithFixedTime(fixedTime time.Time) (time.Time, error) {
	if c.AsOf == "" {
		return time.Date(fixedTime.Year(), fixedTime.Month(), fixedTime.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	asOf, err := time.Parse(DateLayout, c.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid asOf date %q: %w", c.AsOf, err)
	}
	return asOf, nil
}

// Included reports whether the position takes part in the buyout, applying
// the default of true.
func (p Position) Included() bool {
	return p.IncludeInReverse == nil || *p.IncludeInReverse
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	return c.ValidateConfigurationWithFixedTime(time.Now())
}

// ValidateConfigurationWithFixedTime returns advisory warnings, estimating
// balances as of fixedTime when the file has no asOf date.
func (c *Configuration) ValidateConfigurationWithFixedTime(fixedTime time.Time) []string {
	cv := validation.ConfigValidator{
		Settings: validation.SettingsConfig{
			Rate:        c.Settings.Rate,
			FeeSchedule: c.Settings.FeeSchedule,
			NewMoney:    c.Settings.NewMoney,
			HasOverride: c.Settings.DailyPaymentOverride != nil && *c.Settings.DailyPaymentOverride > 0,
			HasTerm:     c.Settings.TermDays != nil && *c.Settings.TermDays > 0,
		},
	}
	for _, p := range c.Positions {
		cv.Positions = append(cv.Positions, validation.PositionConfig{
			ID:               p.ID,
			Entity:           p.Entity,
			IsOurPosition:    p.IsOurPosition,
			IncludeExplicit:  p.IncludeInReverse != nil,
			IncludeInReverse: p.Included(),
			HasBalance:       p.Balance != nil,
			HasFundedDate:    p.FundedDate != "",
			HasAmountFunded:  p.AmountFunded != nil,
		})
	}
	warnings := cv.ValidateAll()

	asOf, err := c.AsOfDateWithFixedTime(fixedTime)
	if err != nil {
		return append(warnings, err.Error())
	}
	positions, err := c.ToPositions()
	if err != nil {
		return append(warnings, err.Error())
	}
	for _, p := range positions {
		b := p.ResolveBalance(asOf)
		if b.Discrepancy {
			warnings = append(warnings, fmt.Sprintf("Position %d (%s) balance %.2f disagrees with the funded-date estimate %.2f; the entered balance is used",
				p.ID, p.Entity, *b.Manual, *b.Auto))
		}
	}
	return warnings
}

// ToSettings converts the file settings to the resolver's settings.
func (s Settings) ToSettings() deal.Settings {
	out := deal.Settings{
		DailyPaymentDecrease: s.DailyPaymentDecrease,
		TermDays:             s.TermDays,
		DailyPaymentOverride: s.DailyPaymentOverride,
		FeePercent:           s.FeePercent,
		FeeSchedule:          s.FeeSchedule,
		Rate:                 s.Rate,
		NewMoney:             s.NewMoney,
		BrokerCommission:     s.BrokerCommission,
	}
	if out.FeeSchedule == "" {
		out.FeeSchedule = constants.FeeScheduleAverage
	}
	for _, tier := range s.EarlyPayOptions {
		out.EarlyPayOptions = append(out.EarlyPayOptions, deal.EarlyPayTier{
			DaysAfterFalloff: tier.DaysAfterFalloff,
			DiscountPercent:  tier.DiscountPercent,
		})
	}
	return out
}

// ToPosition converts one file position, parsing its funded date.
func (p Position) ToPosition() (position.Position, error) {
	out := position.Position{
		ID:               p.ID,
		Entity:           p.Entity,
		Balance:          p.Balance,
		DailyPayment:     p.DailyPayment,
		IsOurPosition:    p.IsOurPosition,
		IncludeInReverse: p.Included(),
		AmountFunded:     p.AmountFunded,
	}
	if p.FundedDate != "" {
		funded, err := time.Parse(DateLayout, p.FundedDate)
		if err != nil {
			return position.Position{}, fmt.Errorf("position %d (%s) has invalid fundedDate %q: %w", p.ID, p.Entity, p.FundedDate, err)
		}
		out.FundedDate = &funded
	}
	return out, nil
}

// ToPositions converts every file position.
func (c *Configuration) ToPositions() ([]position.Position, error) {
	out := make([]position.Position, 0, len(c.Positions))
	for _, p := range c.Positions {
		converted, err := p.ToPosition()
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}
