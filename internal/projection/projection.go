// Package projection describes how the merchant's cash builds up as the old
// positions fall off: the payoff timeline, weekly cash flow, savings
// milestones, the crossover week and the early payoff options.
package projection

import (
	"cmp"
	"slices"
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/aggregate"
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
)

// Payoff is one included position's place on the payoff timeline.
type Payoff struct {
	ID              int       `json:"id"`
	Entity          string    `json:"entity"`
	Balance         float64   `json:"balance"`
	DailyPayment    float64   `json:"dailyPayment"`
	DaysUntilPayoff int       `json:"daysUntilPayoff"`
	PayoffWeek      int       `json:"payoffWeek"`
	LastPaymentDate time.Time `json:"lastPaymentDate"`
}

// WeekRow is the merchant's cash flow for one week.
type WeekRow struct {
	Week int `json:"week"`
	// WeeklyCredits are the old collections forwarded that week, new money excluded.
	WeeklyCredits float64 `json:"weeklyCredits"`
	// YourPayment is what was actually debited under the new deal.
	YourPayment       float64  `json:"yourPayment"`
	NetCashFlow       float64  `json:"netCashFlow"`
	CumulativeSavings float64  `json:"cumulativeSavings"`
	ActivePositions   int      `json:"activePositions"`
	FalloffEntities   []string `json:"falloffEntities"`
}

// Milestone is the savings accrued by a checkpoint day.
type Milestone struct {
	Label   string  `json:"label"`
	Day     int     `json:"day"`
	Savings float64 `json:"savings"`
}

// Crossover is the first week the new payment outruns the old collections.
type Crossover struct {
	Week int `json:"week"`
	// PeakCash is the cumulative savings as of the week before the crossover.
	PeakCash         float64 `json:"peakCash"`
	PositionsCleared int     `json:"positionsCleared"`
	DebtCleared      float64 `json:"debtCleared"`
}

// Falloff summarizes the deal on the day the last included position clears.
type Falloff struct {
	FalloffDay                int     `json:"falloffDay"`
	CashAccumulated           float64 `json:"cashAccumulated"`
	BalanceWithUs             float64 `json:"balanceWithUs"`
	DaysRemainingAfterFalloff int     `json:"daysRemainingAfterFalloff"`
}

// EarlyPayoff is one discounted payoff option after falloff.
type EarlyPayoff struct {
	DaysAfterFalloff int     `json:"daysAfterFalloff"`
	DiscountPercent  float64 `json:"discountPercent"`
	PayoffDeadline   int     `json:"payoffDeadline"`
	Remaining        float64 `json:"remaining"`
	PayoffAmount     float64 `json:"payoffAmount"`
	Savings          float64 `json:"savings"`
	// Applicable is false once the schedule has already ended by the deadline.
	Applicable bool `json:"applicable"`
}

// Projection is the full savings and cash buildup view of a deal.
type Projection struct {
	Timeline      []Payoff      `json:"timeline"`
	Weeks         []WeekRow     `json:"weeks"`
	FullPayoffDay int           `json:"fullPayoffDay"`
	Milestones    []Milestone   `json:"milestones"`
	Crossover     *Crossover    `json:"crossover,omitempty"`
	Falloff       Falloff       `json:"falloff"`
	EarlyPayoffs  []EarlyPayoff `json:"earlyPayoffs"`
}

// Project builds the projection from the normalized positions, the daily
// schedule and its weekly rollup.
func Project(positions []position.WithDays, days []schedule.Day, weeks []aggregate.Week, terms deal.Terms, settings deal.Settings) Projection {
	included := position.Included(positions)

	p := Projection{
		Timeline: Timeline(included),
	}
	for _, payoff := range p.Timeline {
		p.FullPayoffDay = max(p.FullPayoffDay, payoff.DaysUntilPayoff)
	}

	p.Weeks = weeklyRows(included, weeks, settings.NewMoney)
	p.Milestones = Milestones(terms.DailySavings, p.FullPayoffDay)
	p.Crossover = findCrossover(included, p.Weeks)
	p.Falloff = falloffSummary(included, days, p.FullPayoffDay)
	p.EarlyPayoffs = EarlyPayoffs(settings.EarlyPayOptions, days, p.Falloff.FalloffDay)
	return p
}

// Timeline orders included positions by days until payoff. Ties keep their
// input order.
func Timeline(included []position.WithDays) []Payoff {
	out := make([]Payoff, 0, len(included))
	for _, p := range included {
		out = append(out, Payoff{
			ID:              p.ID,
			Entity:          p.Entity,
			Balance:         p.Resolved.Effective,
			DailyPayment:    p.DailyPayment,
			DaysUntilPayoff: p.DaysLeft,
			PayoffWeek:      schedule.WeekOf(p.DaysLeft),
			LastPaymentDate: p.LastPaymentDate,
		})
	}
	slices.SortStableFunc(out, func(a, b Payoff) int {
		return cmp.Compare(a.DaysUntilPayoff, b.DaysUntilPayoff)
	})
	return out
}

func weekStart(week int) int {
	return (week-1)*constants.BusinessDaysPerWeek + 1
}

func weeklyRows(included []position.WithDays, weeks []aggregate.Week, newMoney float64) []WeekRow {
	rows := make([]WeekRow, 0, len(weeks))
	cumulative := 0.0
	for _, w := range weeks {
		credits := w.CashInfusion
		if w.Week == 1 {
			credits -= newMoney
		}
		row := WeekRow{
			Week:            w.Week,
			WeeklyCredits:   credits,
			YourPayment:     w.TotalDebits,
			NetCashFlow:     credits - w.TotalDebits,
			FalloffEntities: []string{},
		}
		cumulative += row.NetCashFlow
		row.CumulativeSavings = cumulative

		start := weekStart(w.Week)
		for _, p := range included {
			if p.DaysLeft >= start {
				row.ActivePositions++
			}
			if schedule.WeekOf(p.DaysLeft) == w.Week {
				row.FalloffEntities = append(row.FalloffEntities, p.Entity)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Milestones reports the savings at one and three months. Savings only accrue
// while the old positions are still being serviced, so each checkpoint is
// capped at the full payoff day.
func Milestones(dailySavings float64, fullPayoffDay int) []Milestone {
	checkpoints := []struct {
		label string
		day   int
	}{
		{"1 Month", constants.OneMonthCheckpoint},
		{"3 Months", constants.ThreeMonthCheckpoint},
		{"Full Payoff", fullPayoffDay},
	}
	out := make([]Milestone, 0, len(checkpoints))
	for _, c := range checkpoints {
		elapsed := min(c.day, fullPayoffDay)
		out = append(out, Milestone{
			Label:   c.label,
			Day:     c.day,
			Savings: dailySavings * float64(elapsed),
		})
	}
	return out
}

func findCrossover(included []position.WithDays, rows []WeekRow) *Crossover {
	for i, row := range rows {
		if row.NetCashFlow >= 0 {
			continue
		}
		c := &Crossover{Week: row.Week}
		if i > 0 {
			c.PeakCash = rows[i-1].CumulativeSavings
		}
		clearedBy := weekStart(row.Week) - 1
		for _, p := range included {
			if p.DaysLeft <= clearedBy {
				c.PositionsCleared++
				c.DebtCleared += p.Resolved.Effective
			}
		}
		return c
	}
	return nil
}

func falloffSummary(included []position.WithDays, days []schedule.Day, falloffDay int) Falloff {
	f := Falloff{FalloffDay: falloffDay}
	for d := 1; d <= falloffDay; d++ {
		f.CashAccumulated += schedule.DailyCollection(included, d)
		if d <= len(days) {
			f.CashAccumulated -= days[d-1].DailyWithdrawal
		}
	}
	if falloffDay >= 1 && falloffDay <= len(days) {
		f.BalanceWithUs = days[falloffDay-1].RTRBalance
	}
	f.DaysRemainingAfterFalloff = max(0, len(days)-falloffDay)
	return f
}

// EarlyPayoffs prices each discount tier against the remaining balance on its
// deadline.
func EarlyPayoffs(tiers []deal.EarlyPayTier, days []schedule.Day, falloffDay int) []EarlyPayoff {
	out := make([]EarlyPayoff, 0, len(tiers))
	for _, tier := range tiers {
		e := EarlyPayoff{
			DaysAfterFalloff: tier.DaysAfterFalloff,
			DiscountPercent:  tier.DiscountPercent,
			PayoffDeadline:   falloffDay + tier.DaysAfterFalloff,
		}
		if e.PayoffDeadline >= 1 && e.PayoffDeadline <= len(days) {
			e.Remaining = max(0, days[e.PayoffDeadline-1].RTRBalance)
		}
		e.Applicable = e.Remaining > 0
		e.PayoffAmount = e.Remaining * (1 - tier.DiscountPercent)
		e.Savings = e.Remaining * tier.DiscountPercent
		out = append(out, e)
	}
	return out
}
