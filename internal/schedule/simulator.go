// Package schedule simulates the reverse consolidation day by day: the old
// funders' collections flow in as weekly lumps while the new daily payment is
// debited until the return to repay is exhausted.
package schedule

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"go.uber.org/zap"
)

// ErrNonTerminating is returned when the day cap is reached while return to
// repay is still outstanding. The partial schedule is returned with it.
var ErrNonTerminating = errors.New("schedule did not terminate")

// Day is one simulated business day.
type Day struct {
	Day               int     `json:"day"`
	Week              int     `json:"week"`
	CashInfusion      float64 `json:"cashInfusion"`
	DailyWithdrawal   float64 `json:"dailyWithdrawal"`
	ExposureOnReverse float64 `json:"exposureOnReverse"`
	RTRBalance        float64 `json:"rtrBalance"`
}

// Schedule is the full daily sequence for one calculation.
type Schedule struct {
	Days []Day `json:"days"`
	// Complete is false when the cap was hit before the balance reached zero.
	Complete bool `json:"complete"`
}

// Params are the resolved deal values the simulation runs on.
type Params struct {
	NewMoney        float64
	NewDailyPayment float64
	Rate            float64
	OriginationFee  float64
}

// Simulator runs the day-by-day schedule.
type Simulator struct {
	logger  *zap.Logger
	maxDays int
}

// NewSimulator creates a simulator capped at constants.MaxScheduleDays.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger, maxDays: constants.MaxScheduleDays}
}

// IsPayDay reports whether day opens a 5-day block.
func IsPayDay(day int) bool {
	return (day-1)%constants.BusinessDaysPerWeek == 0
}

// WeekOf returns the 1-based week of a 1-based day.
func WeekOf(day int) int {
	return (day + constants.BusinessDaysPerWeek - 1) / constants.BusinessDaysPerWeek
}

// DailyCollection is what the included positions still collect on day d.
func DailyCollection(positions []position.WithDays, d int) float64 {
	total := 0.0
	for _, p := range positions {
		if p.Included && d <= p.DaysLeft {
			total += p.DailyPayment
		}
	}
	return total
}

// Simulate walks forward one business day at a time. Only included positions
// contribute cash. Day 1 never carries a withdrawal, each pay day receives the
// coming week's old collections as one lump, and the run stops on the first
// day the remaining return to repay is at or below zero.
func (s *Simulator) Simulate(positions []position.WithDays, params Params) (Schedule, error) {
	included := position.Included(positions)
	if len(included) == 0 && params.NewMoney == 0 {
		return Schedule{Days: []Day{}, Complete: true}, nil
	}

	days := make([]Day, 0, 64)
	cumulativeNetFunded := 0.0
	cumulativeDebits := 0.0

	for day := 1; day <= s.maxDays; day++ {
		cashInfusion := 0.0
		if IsPayDay(day) {
			if day == 1 {
				cashInfusion = params.NewMoney
			}
			last := min(day+constants.BusinessDaysPerWeek-1, s.maxDays)
			for d := day; d <= last; d++ {
				cashInfusion += DailyCollection(included, d)
			}
		}

		cumulativeNetFunded += cashInfusion
		cumulativeGross := cumulativeNetFunded + params.OriginationFee
		rtrBeforeDebit := cumulativeGross*params.Rate - cumulativeDebits

		dailyWithdrawal := 0.0
		if day >= 2 {
			dailyWithdrawal = math.Min(params.NewDailyPayment, math.Max(0, rtrBeforeDebit))
		}
		cumulativeDebits += dailyWithdrawal

		rtrBalance := rtrBeforeDebit - dailyWithdrawal
		days = append(days, Day{
			Day:               day,
			Week:              WeekOf(day),
			CashInfusion:      cashInfusion,
			DailyWithdrawal:   dailyWithdrawal,
			ExposureOnReverse: cumulativeNetFunded - cumulativeDebits,
			RTRBalance:        rtrBalance,
		})

		if rtrBalance <= 0 {
			s.logger.Debug(fmt.Sprintf("schedule terminated on day %d", day),
				zap.String("op", "schedule.Simulate"),
				zap.Float64("collected", cumulativeDebits),
			)
			return Schedule{Days: days, Complete: true}, nil
		}
	}

	outstanding := days[len(days)-1].RTRBalance
	s.logger.Warn(fmt.Sprintf("schedule hit the %d day cap with %.2f still owed", s.maxDays, outstanding),
		zap.String("op", "schedule.Simulate"),
		zap.Float64("newDailyPayment", params.NewDailyPayment),
	)
	return Schedule{Days: days, Complete: false},
		fmt.Errorf("%w: %.2f outstanding after %d days", ErrNonTerminating, outstanding, s.maxDays)
}
