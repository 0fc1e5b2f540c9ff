// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/reverse-consolidation/pkg/constants"
)

// ValidateFactorRate warns when the factor rate cannot return more than was
// funded.
func ValidateFactorRate(rate float64) string {
	if rate > 0 && rate <= 1 {
		return fmt.Sprintf("Factor rate %.3f returns no more than the amount funded", rate)
	}
	return ""
}

// ValidateFeeSchedule warns when new money is advanced under an upfront fee,
// which charges the whole fee against the first infusion.
func ValidateFeeSchedule(feeSchedule string, newMoney float64) string {
	if feeSchedule == constants.FeeScheduleUpfront && newMoney > 0 {
		return fmt.Sprintf("Upfront fee schedule takes the full fee on day 1 while $%.2f of new money is advanced", newMoney)
	}
	return ""
}

// ValidatePaymentRules warns when more than one payment rule is set; only the
// highest priority one applies.
func ValidatePaymentRules(hasOverride, hasTerm bool) string {
	if hasOverride && hasTerm {
		return "Both dailyPaymentOverride and termDays are set; the override takes priority"
	}
	return ""
}

// ConfigValidator gathers the advisory checks over a whole deal file.
type ConfigValidator struct {
	Settings  SettingsConfig
	Positions []PositionConfig
}

// SettingsConfig is the subset of deal settings the checks read.
type SettingsConfig struct {
	Rate        float64
	FeeSchedule string
	NewMoney    float64
	HasOverride bool
	HasTerm     bool
}

// PositionConfig is the subset of a position the checks read.
type PositionConfig struct {
	ID               int
	Entity           string
	IsOurPosition    bool
	IncludeExplicit  bool
	IncludeInReverse bool
	HasBalance       bool
	HasFundedDate    bool
	HasAmountFunded  bool
}

// ValidatePosition returns the warnings for one position record.
func ValidatePosition(p PositionConfig) []string {
	var warnings []string
	label := fmt.Sprintf("Position %d (%s)", p.ID, p.Entity)

	if p.IsOurPosition && p.IncludeExplicit && p.IncludeInReverse {
		warnings = append(warnings, fmt.Sprintf("%s is our own position and is never bought out", label))
	}
	if p.HasFundedDate != p.HasAmountFunded {
		warnings = append(warnings, fmt.Sprintf("%s needs both fundedDate and amountFunded to estimate a balance", label))
	}
	if !p.IsOurPosition && !p.HasBalance && !(p.HasFundedDate && p.HasAmountFunded) {
		warnings = append(warnings, fmt.Sprintf("%s has no known balance and will be excluded", label))
	}
	return warnings
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	for _, w := range []string{
		ValidateFactorRate(cv.Settings.Rate),
		ValidateFeeSchedule(cv.Settings.FeeSchedule, cv.Settings.NewMoney),
		ValidatePaymentRules(cv.Settings.HasOverride, cv.Settings.HasTerm),
	} {
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	seen := make(map[int]bool, len(cv.Positions))
	for _, p := range cv.Positions {
		if seen[p.ID] {
			warnings = append(warnings, fmt.Sprintf("Position id %d is used more than once", p.ID))
		}
		seen[p.ID] = true
		warnings = append(warnings, ValidatePosition(p)...)
	}

	return warnings
}
