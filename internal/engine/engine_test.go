package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iwvelando/reverse-consolidation/internal/cache"
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/pkg/datetime"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }

func scenarioInput() Input {
	return Input{
		Positions: []position.Position{
			{ID: 1, Entity: "Alpha", Balance: floatPtr(50000), DailyPayment: 500, IncludeInReverse: true},
			{ID: 2, Entity: "Bravo", DailyPayment: 120, IncludeInReverse: true},
		},
		Settings: deal.Settings{
			DailyPaymentDecrease: 0.30,
			FeePercent:           0.10,
			FeeSchedule:          "average",
			Rate:                 1.5,
		},
		MonthlyRevenue: 150000,
		AsOf:           datetime.MustParseDate("2026-01-12"),
	}
}

func TestEvaluateScenario(t *testing.T) {
	res, err := NewCalculator(zap.NewNop()).Evaluate(context.Background(), scenarioInput())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if res.Terms.NumberOfDebits != 239 || res.Terms.TotalPayback != 83650 {
		t.Errorf("unexpected terms %+v", res.Terms)
	}
	if res.Incomplete {
		t.Error("scenario should terminate")
	}
	if len(res.DailySchedule) != 240 || res.Metrics.TotalDays != 240 {
		t.Errorf("expected 240 days, got %d", len(res.DailySchedule))
	}
	if len(res.WeeklySchedule) != 48 {
		t.Errorf("expected 48 weeks, got %d", len(res.WeeklySchedule))
	}
	if len(res.Positions) != 2 {
		t.Errorf("unknown balance position should be retained, got %d positions", len(res.Positions))
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected one unknown balance warning, got %v", res.Warnings)
	}
	if res.Projection.FullPayoffDay != 100 {
		t.Errorf("FullPayoffDay = %d, expected 100", res.Projection.FullPayoffDay)
	}
	// Bravo has no balance but still counts toward leverage.
	if math.Abs(res.Metrics.CurrentLeverage-(620*22.0/150000*100)) > 1e-9 {
		t.Errorf("CurrentLeverage = %.4f", res.Metrics.CurrentLeverage)
	}
}

func TestEvaluateInvalidConfiguration(t *testing.T) {
	in := scenarioInput()
	in.Settings.FeePercent = 1

	res, err := NewCalculator(nil).Evaluate(context.Background(), in)
	if !errors.Is(err, deal.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if res != nil {
		t.Error("expected no result for an invalid configuration")
	}
}

func TestEvaluateInvalidPosition(t *testing.T) {
	in := scenarioInput()
	in.Positions[0].DailyPayment = -1

	if _, err := NewCalculator(nil).Evaluate(context.Background(), in); !errors.Is(err, position.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestEvaluateNonTerminating(t *testing.T) {
	in := scenarioInput()
	in.Settings.DailyPaymentDecrease = 1

	res, err := NewCalculator(nil).Evaluate(context.Background(), in)
	if !errors.Is(err, schedule.ErrNonTerminating) {
		t.Fatalf("expected ErrNonTerminating, got %v", err)
	}
	if res == nil || !res.Incomplete {
		t.Fatal("expected a partial result flagged incomplete")
	}
	if len(res.DailySchedule) != 500 {
		t.Errorf("expected the capped 500 days, got %d", len(res.DailySchedule))
	}
}

type countingCache struct {
	cache.Cache
	gets, sets int
	failGet    bool
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets++
	if c.failGet {
		return nil, errors.New("connection refused")
	}
	return c.Cache.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	return c.Cache.Set(ctx, key, value, ttl)
}

func TestEvaluateUsesCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingCache{Cache: cache.NewMemoryCache()}
	calc := NewCalculator(nil, WithCache(backing, time.Minute))

	first, err := calc.Evaluate(ctx, scenarioInput())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	second, err := calc.Evaluate(ctx, scenarioInput())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if backing.sets != 1 {
		t.Errorf("expected one cache write, got %d", backing.sets)
	}
	if backing.gets != 2 {
		t.Errorf("expected two cache reads, got %d", backing.gets)
	}
	if first == second {
		t.Error("second evaluation should be decoded from the cache")
	}
	if first.Terms != second.Terms || first.Metrics != second.Metrics {
		t.Errorf("cached result differs:\n%+v\n%+v", first.Terms, second.Terms)
	}
	if len(second.DailySchedule) != len(first.DailySchedule) {
		t.Errorf("cached schedule has %d days, expected %d", len(second.DailySchedule), len(first.DailySchedule))
	}

	other := scenarioInput()
	other.MonthlyRevenue = 90000
	if _, err := calc.Evaluate(ctx, other); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if backing.sets != 2 {
		t.Errorf("different input should miss the cache, sets = %d", backing.sets)
	}
}

func TestEvaluateIgnoresCacheFailures(t *testing.T) {
	backing := &countingCache{Cache: cache.NewMemoryCache(), failGet: true}
	calc := NewCalculator(nil, WithCache(backing, time.Minute))

	res, err := calc.Evaluate(context.Background(), scenarioInput())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Terms.NumberOfDebits != 239 {
		t.Errorf("NumberOfDebits = %d, expected 239", res.Terms.NumberOfDebits)
	}
}

func TestKeyIsStable(t *testing.T) {
	a, err := Key(scenarioInput())
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, _ := Key(scenarioInput())
	if a != b {
		t.Errorf("Key() is not stable: %s vs %s", a, b)
	}

	changed := scenarioInput()
	changed.AsOf = changed.AsOf.AddDate(0, 0, 1)
	c, _ := Key(changed)
	if a == c {
		t.Error("Key() ignored the as-of date")
	}
}

func TestBreakdown(t *testing.T) {
	calc := NewCalculator(nil)
	b, err := calc.Breakdown(scenarioInput(), 96)
	if err != nil {
		t.Fatalf("Breakdown() error = %v", err)
	}
	if b.Total != 2500 || len(b.Entries) != 1 {
		t.Errorf("unexpected breakdown %+v", b)
	}

	if _, err := calc.Breakdown(scenarioInput(), 0); !errors.Is(err, deal.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for day 0, got %v", err)
	}
}
