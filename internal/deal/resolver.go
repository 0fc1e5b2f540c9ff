// Package deal derives the authoritative terms of a reverse consolidation:
// funding, fees, the new daily payment and the number of debits.
package deal

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrInvalidConfiguration is returned when settings would make the funding
// formula undefined or otherwise cannot describe a deal.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Branch names the priority rule that produced the payment and term.
type Branch string

const (
	BranchOverride Branch = "override"
	BranchTerm     Branch = "term"
	BranchDiscount Branch = "discount"
	// BranchEmpty means there was nothing to consolidate.
	BranchEmpty Branch = "empty"
)

// EarlyPayTier is one optional early payoff discount offered once all
// consolidated positions have cleared.
type EarlyPayTier struct {
	DaysAfterFalloff int     `json:"daysAfterFalloff"`
	DiscountPercent  float64 `json:"discountPercent"`
}

// Settings are the deal-level parameters of one calculation.
type Settings struct {
	DailyPaymentDecrease float64        `json:"dailyPaymentDecrease"`
	TermDays             *int           `json:"termDays"`
	DailyPaymentOverride *float64       `json:"dailyPaymentOverride"`
	FeePercent           float64        `json:"feePercent"`
	FeeSchedule          string         `json:"feeSchedule"`
	Rate                 float64        `json:"rate"`
	NewMoney             float64        `json:"newMoney"`
	BrokerCommission     float64        `json:"brokerCommission"`
	EarlyPayOptions      []EarlyPayTier `json:"earlyPayOptions,omitempty"`
}

// Terms is the resolved deal.
type Terms struct {
	Branch Branch `json:"branch"`

	IncludedBalance      float64 `json:"includedBalance"`
	IncludedDailyPayment float64 `json:"includedDailyPayment"`
	TotalAdvanceAmount   float64 `json:"totalAdvanceAmount"`
	TotalFunding         float64 `json:"totalFunding"`
	NetAdvance           float64 `json:"netAdvance"`
	ConsolidationFees    float64 `json:"consolidationFees"`
	BasePayback          float64 `json:"basePayback"`

	NewDailyPayment float64 `json:"newDailyPayment"`
	NumberOfDebits  int     `json:"numberOfDebits"`
	// TotalPayback is always NewDailyPayment * NumberOfDebits.
	TotalPayback float64 `json:"totalPayback"`

	NewWeeklyPayment float64 `json:"newWeeklyPayment"`
	DailySavings     float64 `json:"dailySavings"`
	WeeklySavings    float64 `json:"weeklySavings"`
	MonthlySavings   float64 `json:"monthlySavings"`
	ReductionPercent float64 `json:"reductionPercent"`

	BrokerCommissionAmount float64 `json:"brokerCommissionAmount"`
}

// Validate rejects settings that cannot describe a deal.
func (s Settings) Validate() error {
	switch {
	case math.IsNaN(s.FeePercent) || s.FeePercent < 0 || s.FeePercent >= 1:
		return fmt.Errorf("%w: feePercent must be in [0, 1), got %v", ErrInvalidConfiguration, s.FeePercent)
	case math.IsNaN(s.Rate) || s.Rate <= 0:
		return fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidConfiguration, s.Rate)
	case math.IsNaN(s.DailyPaymentDecrease) || s.DailyPaymentDecrease < 0 || s.DailyPaymentDecrease > 1:
		return fmt.Errorf("%w: dailyPaymentDecrease must be in [0, 1], got %v", ErrInvalidConfiguration, s.DailyPaymentDecrease)
	case math.IsNaN(s.NewMoney) || s.NewMoney < 0:
		return fmt.Errorf("%w: newMoney must not be negative, got %v", ErrInvalidConfiguration, s.NewMoney)
	case math.IsNaN(s.BrokerCommission) || s.BrokerCommission < 0 || s.BrokerCommission > 1:
		return fmt.Errorf("%w: brokerCommission must be in [0, 1], got %v", ErrInvalidConfiguration, s.BrokerCommission)
	case s.TermDays != nil && *s.TermDays < 0:
		return fmt.Errorf("%w: termDays must not be negative, got %d", ErrInvalidConfiguration, *s.TermDays)
	case s.DailyPaymentOverride != nil && (math.IsNaN(*s.DailyPaymentOverride) || *s.DailyPaymentOverride < 0):
		return fmt.Errorf("%w: dailyPaymentOverride must not be negative, got %v", ErrInvalidConfiguration, *s.DailyPaymentOverride)
	}
	if s.FeeSchedule != "" && s.FeeSchedule != constants.FeeScheduleAverage && s.FeeSchedule != constants.FeeScheduleUpfront {
		return fmt.Errorf("%w: feeSchedule must be %q or %q, got %q", ErrInvalidConfiguration,
			constants.FeeScheduleAverage, constants.FeeScheduleUpfront, s.FeeSchedule)
	}
	for i, tier := range s.EarlyPayOptions {
		if tier.DaysAfterFalloff < 0 || math.IsNaN(tier.DiscountPercent) || tier.DiscountPercent < 0 || tier.DiscountPercent > 1 {
			return fmt.Errorf("%w: early pay tier %d must have non-negative days and a discount in [0, 1]", ErrInvalidConfiguration, i+1)
		}
	}
	return nil
}

// Resolver derives deal terms from normalized positions and settings.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve applies the funding formula and the payment priority rule:
// a positive payment override wins, then a positive fixed term, then the
// percentage discount on the included positions' daily payments.
func (r *Resolver) Resolve(positions []position.WithDays, settings Settings) (Terms, error) {
	if err := settings.Validate(); err != nil {
		return Terms{}, err
	}

	totals := position.Sum(positions)

	var t Terms
	t.IncludedBalance = totals.IncludedBalance
	t.IncludedDailyPayment = totals.IncludedDailyPayment
	t.TotalAdvanceAmount = totals.IncludedBalance + settings.NewMoney

	if t.TotalAdvanceAmount == 0 {
		t.Branch = BranchEmpty
		r.logger.Debug("nothing to consolidate",
			zap.String("op", "deal.Resolve"),
		)
		return t, nil
	}

	t.TotalFunding = t.TotalAdvanceAmount / (1 - settings.FeePercent)
	t.NetAdvance = t.TotalFunding * (1 - settings.FeePercent)
	t.ConsolidationFees = t.TotalFunding * settings.FeePercent
	t.BasePayback = t.TotalFunding * settings.Rate

	switch {
	case settings.DailyPaymentOverride != nil && *settings.DailyPaymentOverride > 0:
		t.Branch = BranchOverride
		t.NewDailyPayment = *settings.DailyPaymentOverride
		t.NumberOfDebits = mathutil.CeilDiv(t.BasePayback, t.NewDailyPayment)
	case settings.TermDays != nil && *settings.TermDays > 0:
		t.Branch = BranchTerm
		t.NumberOfDebits = *settings.TermDays
		t.NewDailyPayment = t.BasePayback / float64(t.NumberOfDebits)
	default:
		t.Branch = BranchDiscount
		t.NewDailyPayment = totals.IncludedDailyPayment * (1 - settings.DailyPaymentDecrease)
		t.NumberOfDebits = mathutil.CeilDiv(t.BasePayback, t.NewDailyPayment)
	}

	t.TotalPayback = t.NewDailyPayment * float64(t.NumberOfDebits)

	t.NewWeeklyPayment = t.NewDailyPayment * constants.BusinessDaysPerWeek
	t.DailySavings = t.IncludedDailyPayment - t.NewDailyPayment
	t.WeeklySavings = t.DailySavings * constants.BusinessDaysPerWeek
	t.MonthlySavings = t.DailySavings * constants.BusinessDaysPerMonth
	if t.IncludedDailyPayment > 0 {
		t.ReductionPercent = mathutil.CalculatePercentage(t.DailySavings, t.IncludedDailyPayment)
	}
	t.BrokerCommissionAmount = t.TotalFunding * settings.BrokerCommission

	r.logger.Debug(fmt.Sprintf("resolved deal via %s rule: %.2f/day over %d debits", t.Branch, t.NewDailyPayment, t.NumberOfDebits),
		zap.String("op", "deal.Resolve"),
		zap.Float64("totalFunding", t.TotalFunding),
		zap.Float64("totalPayback", t.TotalPayback),
	)

	return t, nil
}
