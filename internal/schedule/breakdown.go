package schedule

import (
	"math"

	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
)

// NewMoneyEntity labels the new money line of a day 1 breakdown.
const NewMoneyEntity = "New Money"

// BreakdownEntry is one source of a pay day's cash infusion.
type BreakdownEntry struct {
	Entity            string  `json:"entity"`
	DailyPayment      float64 `json:"dailyPayment"`
	DaysContributing  int     `json:"daysContributing"`
	TotalContribution float64 `json:"totalContribution"`
	RemainingBalance  float64 `json:"remainingBalance"`
	TotalDaysLeft     int     `json:"totalDaysLeft"`
	IsNewMoney        bool    `json:"isNewMoney"`
}

// Breakdown is the itemized infusion for one pay day.
type Breakdown struct {
	Day     int              `json:"day"`
	Week    int              `json:"week"`
	Entries []BreakdownEntry `json:"entries"`
	Total   float64          `json:"total"`
}

// BreakdownFor itemizes the infusion received on day. Non pay days receive
// nothing and yield an empty breakdown. Entries sum to the simulated
// CashInfusion for the same day.
func BreakdownFor(positions []position.WithDays, newMoney float64, day int) Breakdown {
	b := Breakdown{Day: day, Week: WeekOf(day), Entries: []BreakdownEntry{}}
	if day < 1 || day > constants.MaxScheduleDays || !IsPayDay(day) {
		return b
	}

	if day == 1 && newMoney > 0 {
		b.Entries = append(b.Entries, BreakdownEntry{
			Entity:            NewMoneyEntity,
			TotalContribution: newMoney,
			IsNewMoney:        true,
		})
		b.Total += newMoney
	}

	last := min(day+constants.BusinessDaysPerWeek-1, constants.MaxScheduleDays)
	for _, p := range position.Included(positions) {
		contributing := min(last, p.DaysLeft) - day + 1
		if contributing <= 0 {
			continue
		}
		contribution := p.DailyPayment * float64(contributing)
		b.Entries = append(b.Entries, BreakdownEntry{
			Entity:            p.Entity,
			DailyPayment:      p.DailyPayment,
			DaysContributing:  contributing,
			TotalContribution: contribution,
			RemainingBalance:  math.Max(0, p.Resolved.Effective-p.DailyPayment*float64(day-1)),
			TotalDaysLeft:     p.DaysLeft,
		})
		b.Total += contribution
	}
	return b
}
