// Package aggregate rolls the daily schedule up into weeks and derives the
// deal's headline metrics.
package aggregate

import (
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/mathutil"
)

// Week is the rollup of one 5-day block.
type Week struct {
	Week         int     `json:"week"`
	CashInfusion float64 `json:"cashInfusion"`
	TotalDebits  float64 `json:"totalDebits"`
	// EndExposure is the exposure on the last day of the week.
	EndExposure float64 `json:"endExposure"`
}

// Metrics are the headline figures of an evaluated deal.
type Metrics struct {
	TotalDays              int     `json:"totalDays"`
	MaxExposure            float64 `json:"maxExposure"`
	MaxExposureDay         int     `json:"maxExposureDay"`
	LastDayExposed         int     `json:"lastDayExposed"`
	PercentDaysInRed       float64 `json:"percentDaysInRed"`
	TotalCashInfusion      float64 `json:"totalCashInfusion"`
	ActualPaybackCollected float64 `json:"actualPaybackCollected"`
	Profit                 float64 `json:"profit"`
	NetProfit              float64 `json:"netProfit"`
	DealTrueFactor         float64 `json:"dealTrueFactor"`
	CurrentLeverage        float64 `json:"currentLeverage"`
	NewLeverage            float64 `json:"newLeverage"`
}

// Weekly groups days by week. Days must be in schedule order.
func Weekly(days []schedule.Day) []Week {
	weeks := []Week{}
	for _, d := range days {
		if len(weeks) == 0 || weeks[len(weeks)-1].Week != d.Week {
			weeks = append(weeks, Week{Week: d.Week})
		}
		w := &weeks[len(weeks)-1]
		w.CashInfusion += d.CashInfusion
		w.TotalDebits += d.DailyWithdrawal
		w.EndExposure = d.ExposureOnReverse
	}
	return weeks
}

// Leverage is the share of monthly revenue consumed by a daily payment, in
// percent. It is 0 without a positive revenue.
func Leverage(dailyPayment, monthlyRevenue float64) float64 {
	if monthlyRevenue <= 0 {
		return 0
	}
	return mathutil.CalculatePercentage(dailyPayment*constants.BusinessDaysPerMonth, monthlyRevenue)
}

// Compute derives the deal metrics from the daily schedule. Current leverage
// is measured over every external position, included or not.
func Compute(days []schedule.Day, terms deal.Terms, totals position.Totals, monthlyRevenue float64) Metrics {
	m := Metrics{TotalDays: len(days)}

	for i, d := range days {
		if i == 0 || d.ExposureOnReverse > m.MaxExposure {
			m.MaxExposure = d.ExposureOnReverse
			m.MaxExposureDay = d.Day
		}
		if d.ExposureOnReverse > 0 {
			m.LastDayExposed = d.Day
		}
		m.TotalCashInfusion += d.CashInfusion
		m.ActualPaybackCollected += d.DailyWithdrawal
	}

	if m.TotalDays > 0 {
		m.PercentDaysInRed = mathutil.CalculatePercentage(float64(m.LastDayExposed), float64(m.TotalDays))
	}
	m.Profit = m.ActualPaybackCollected - m.TotalCashInfusion
	m.NetProfit = m.Profit - terms.BrokerCommissionAmount
	if m.MaxExposure > 0 {
		m.DealTrueFactor = 1 + (m.Profit-terms.ConsolidationFees)/(m.MaxExposure+terms.ConsolidationFees)
	}
	m.CurrentLeverage = Leverage(totals.AllDailyPayment, monthlyRevenue)
	m.NewLeverage = Leverage(terms.NewDailyPayment, monthlyRevenue)
	return m
}

// Fee labels for the day 1 summary.
const (
	FeeLabelUpfront      = "Full Fee (Upfront)"
	FeeLabelProportional = "Proportional Fee"
)

// Day1 summarizes the contract as it stands after the first infusion.
type Day1 struct {
	CashInfused    float64 `json:"cashInfused"`
	OriginationFee float64 `json:"originationFee"`
	GrossContract  float64 `json:"grossContract"`
	RTR            float64 `json:"rtr"`
	FeeLabel       string  `json:"feeLabel"`
}

// Day1Summary describes day 1 of the schedule. An empty schedule yields a
// zero infusion with the fee still shown.
func Day1Summary(days []schedule.Day, terms deal.Terms, settings deal.Settings) Day1 {
	s := Day1{
		OriginationFee: terms.ConsolidationFees,
		FeeLabel:       FeeLabelProportional,
	}
	if settings.FeeSchedule == constants.FeeScheduleUpfront {
		s.FeeLabel = FeeLabelUpfront
	}
	if len(days) > 0 {
		s.CashInfused = days[0].CashInfusion
	}
	s.GrossContract = s.CashInfused + s.OriginationFee
	s.RTR = s.GrossContract * settings.Rate
	return s
}
