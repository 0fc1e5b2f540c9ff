package projection

import (
	"math"
	"testing"

	"github.com/iwvelando/reverse-consolidation/internal/aggregate"
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/pkg/datetime"
)

func floatPtr(v float64) *float64 { return &v }

func project(t *testing.T, positions []position.Position, settings deal.Settings) Projection {
	t.Helper()
	normalized, err := position.Normalize(positions, datetime.MustParseDate("2026-01-12"))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	terms, err := deal.NewResolver(nil).Resolve(normalized, settings)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	sched, err := schedule.NewSimulator(nil).Simulate(normalized, schedule.Params{
		NewMoney:        settings.NewMoney,
		NewDailyPayment: terms.NewDailyPayment,
		Rate:            settings.Rate,
		OriginationFee:  terms.ConsolidationFees,
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	return Project(normalized, sched.Days, aggregate.Weekly(sched.Days), terms, settings)
}

func scenarioSettings() deal.Settings {
	return deal.Settings{
		DailyPaymentDecrease: 0.30,
		FeePercent:           0.10,
		FeeSchedule:          "average",
		Rate:                 1.5,
		EarlyPayOptions: []deal.EarlyPayTier{
			{DaysAfterFalloff: 30, DiscountPercent: 0.10},
			{DaysAfterFalloff: 200, DiscountPercent: 0.20},
		},
	}
}

func TestProjectScenario(t *testing.T) {
	p := project(t, []position.Position{
		{ID: 1, Entity: "Alpha", Balance: floatPtr(50000), DailyPayment: 500, IncludeInReverse: true},
	}, scenarioSettings())

	if p.FullPayoffDay != 100 {
		t.Errorf("FullPayoffDay = %d, expected 100", p.FullPayoffDay)
	}

	first := p.Weeks[0]
	if first.WeeklyCredits != 2500 || first.YourPayment != 1400 || first.NetCashFlow != 1100 {
		t.Errorf("unexpected week 1 %+v", first)
	}
	if p.Weeks[1].YourPayment != 1750 {
		t.Errorf("week 2 YourPayment = %.2f, expected the simulated 1750", p.Weeks[1].YourPayment)
	}
	if p.Weeks[19].FalloffEntities[0] != "Alpha" || p.Weeks[19].ActivePositions != 1 {
		t.Errorf("unexpected week 20 %+v", p.Weeks[19])
	}
	if p.Weeks[20].ActivePositions != 0 {
		t.Errorf("week 21 ActivePositions = %d, expected 0", p.Weeks[20].ActivePositions)
	}

	if p.Crossover == nil {
		t.Fatal("expected a crossover week")
	}
	if p.Crossover.Week != 21 {
		t.Errorf("Crossover.Week = %d, expected 21", p.Crossover.Week)
	}
	if p.Crossover.PeakCash != 15350 {
		t.Errorf("Crossover.PeakCash = %.2f, expected 15350", p.Crossover.PeakCash)
	}
	if p.Crossover.PositionsCleared != 1 || p.Crossover.DebtCleared != 50000 {
		t.Errorf("unexpected crossover clearing %+v", p.Crossover)
	}

	wantMilestones := []float64{3300, 9900, 15000}
	for i, want := range wantMilestones {
		if math.Abs(p.Milestones[i].Savings-want) > 1e-6 {
			t.Errorf("%s savings = %.2f, expected %.2f", p.Milestones[i].Label, p.Milestones[i].Savings, want)
		}
	}

	if p.Falloff.FalloffDay != 100 {
		t.Errorf("FalloffDay = %d, expected 100", p.Falloff.FalloffDay)
	}
	if p.Falloff.CashAccumulated != 15350 {
		t.Errorf("CashAccumulated = %.2f, expected 15350", p.Falloff.CashAccumulated)
	}
	if math.Abs(p.Falloff.BalanceWithUs-48683.33) > 0.01 {
		t.Errorf("BalanceWithUs = %.2f, expected 48683.33", p.Falloff.BalanceWithUs)
	}
	if p.Falloff.DaysRemainingAfterFalloff != 140 {
		t.Errorf("DaysRemainingAfterFalloff = %d, expected 140", p.Falloff.DaysRemainingAfterFalloff)
	}

	if len(p.EarlyPayoffs) != 2 {
		t.Fatalf("expected 2 early payoff tiers, got %d", len(p.EarlyPayoffs))
	}
	tier := p.EarlyPayoffs[0]
	if !tier.Applicable || tier.PayoffDeadline != 130 {
		t.Errorf("unexpected first tier %+v", tier)
	}
	if math.Abs(tier.Remaining-38183.33) > 0.01 {
		t.Errorf("Remaining = %.2f, expected 38183.33", tier.Remaining)
	}
	if math.Abs(tier.PayoffAmount+tier.Savings-tier.Remaining) > 1e-9 {
		t.Errorf("payoff %.2f and savings %.2f do not add up to %.2f", tier.PayoffAmount, tier.Savings, tier.Remaining)
	}
	if late := p.EarlyPayoffs[1]; late.Applicable || late.Remaining != 0 {
		t.Errorf("tier past the end of the schedule should not apply: %+v", late)
	}
}

func TestTimelineOrder(t *testing.T) {
	p := project(t, []position.Position{
		{ID: 1, Entity: "Slow", Balance: floatPtr(30000), DailyPayment: 200, IncludeInReverse: true},
		{ID: 2, Entity: "Fast", Balance: floatPtr(2000), DailyPayment: 250, IncludeInReverse: true},
		{ID: 3, Entity: "Skipped", Balance: floatPtr(1000), DailyPayment: 100, IncludeInReverse: false},
		{ID: 4, Entity: "Middle", Balance: floatPtr(9000), DailyPayment: 150, IncludeInReverse: true},
	}, scenarioSettings())

	expected := []string{"Fast", "Middle", "Slow"}
	if len(p.Timeline) != len(expected) {
		t.Fatalf("expected %d timeline entries, got %d", len(expected), len(p.Timeline))
	}
	for i, name := range expected {
		if p.Timeline[i].Entity != name {
			t.Errorf("timeline[%d] = %s, expected %s", i, p.Timeline[i].Entity, name)
		}
	}
	if p.Timeline[0].DaysUntilPayoff != 8 || p.Timeline[0].PayoffWeek != 2 {
		t.Errorf("unexpected first payoff %+v", p.Timeline[0])
	}
	if p.FullPayoffDay != 150 {
		t.Errorf("FullPayoffDay = %d, expected 150", p.FullPayoffDay)
	}
}

func TestMilestonesCappedAtPayoff(t *testing.T) {
	got := Milestones(100, 40)
	expected := []float64{2200, 4000, 4000}
	for i, want := range expected {
		if got[i].Savings != want {
			t.Errorf("%s = %.2f, expected %.2f", got[i].Label, got[i].Savings, want)
		}
	}
}

func TestProjectExcludesNewMoneyFromCredits(t *testing.T) {
	settings := scenarioSettings()
	settings.NewMoney = 4000
	p := project(t, []position.Position{
		{ID: 1, Entity: "Alpha", Balance: floatPtr(6000), DailyPayment: 300, IncludeInReverse: true},
	}, settings)

	if p.Weeks[0].WeeklyCredits != 1500 {
		t.Errorf("week 1 WeeklyCredits = %.2f, expected 1500", p.Weeks[0].WeeklyCredits)
	}
}
