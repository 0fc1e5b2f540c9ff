// Package engine evaluates a reverse consolidation end to end: positions and
// settings in, terms, schedules, metrics and projection out.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/iwvelando/reverse-consolidation/internal/aggregate"
	"github.com/iwvelando/reverse-consolidation/internal/cache"
	"github.com/iwvelando/reverse-consolidation/internal/deal"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/projection"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
	"github.com/iwvelando/reverse-consolidation/internal/telemetry"
	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"go.uber.org/zap"
)

// Input is everything one evaluation depends on. AsOf anchors the
// auto-derived balances and payoff dates, so equal inputs give equal results.
type Input struct {
	Positions      []position.Position `json:"positions"`
	Settings       deal.Settings       `json:"settings"`
	MonthlyRevenue float64             `json:"monthlyRevenue"`
	AsOf           time.Time           `json:"asOf"`
}

// Result is the full evaluation of a deal.
type Result struct {
	AsOf           time.Time              `json:"asOf"`
	Terms          deal.Terms             `json:"terms"`
	Totals         position.Totals        `json:"totals"`
	Positions      []position.WithDays    `json:"positions"`
	DailySchedule  []schedule.Day         `json:"dailySchedule"`
	WeeklySchedule []aggregate.Week       `json:"weeklySchedule"`
	Metrics        aggregate.Metrics      `json:"metrics"`
	Day1           aggregate.Day1         `json:"day1"`
	Projection     projection.Projection  `json:"projection"`
	Discrepancies  []position.Discrepancy `json:"discrepancies"`
	// Incomplete is set when the schedule hit the day cap with balance owed.
	Incomplete bool     `json:"incomplete"`
	Warnings   []string `json:"warnings"`
}

// Calculator evaluates deals, optionally memoizing results in a cache.
type Calculator struct {
	logger    *zap.Logger
	resolver  *deal.Resolver
	simulator *schedule.Simulator
	cache     cache.Cache
	ttl       time.Duration
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCache memoizes results in c for ttl. A nil cache disables memoization.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(calc *Calculator) {
		calc.cache = c
		calc.ttl = ttl
	}
}

// NewCalculator creates a calculator.
func NewCalculator(logger *zap.Logger, opts ...Option) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Calculator{
		logger:    logger,
		resolver:  deal.NewResolver(logger),
		simulator: schedule.NewSimulator(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate runs the full pipeline. A non-terminating schedule returns the
// partial result, flagged Incomplete, together with schedule.ErrNonTerminating.
func (c *Calculator) Evaluate(ctx context.Context, in Input) (*Result, error) {
	started := time.Now()

	key, keyErr := Key(in)
	if keyErr != nil {
		c.logger.Warn("unable to key evaluation, skipping cache",
			zap.String("op", "engine.Evaluate"),
			zap.Error(keyErr),
		)
	}
	if c.cache != nil && keyErr == nil {
		if res, ok := c.lookup(ctx, key); ok {
			return res, nil
		}
	}

	res, err := c.evaluate(in)
	switch {
	case errors.Is(err, schedule.ErrNonTerminating):
		telemetry.ObserveEvaluation(telemetry.OutcomeNonTerminating, started, len(res.DailySchedule))
		return res, err
	case err != nil:
		telemetry.ObserveEvaluation(telemetry.OutcomeInvalid, started, 0)
		return nil, err
	}
	telemetry.ObserveEvaluation(telemetry.OutcomeOK, started, len(res.DailySchedule))

	if c.cache != nil && keyErr == nil {
		c.store(ctx, key, res)
	}
	return res, nil
}

// Breakdown itemizes the infusion received on a pay day of the evaluated deal.
func (c *Calculator) Breakdown(in Input, day int) (schedule.Breakdown, error) {
	normalized, err := position.Normalize(in.Positions, in.AsOf)
	if err != nil {
		return schedule.Breakdown{}, err
	}
	if err := in.Settings.Validate(); err != nil {
		return schedule.Breakdown{}, err
	}
	if day < 1 || day > constants.MaxScheduleDays {
		return schedule.Breakdown{}, fmt.Errorf("%w: day must be between 1 and %d, got %d",
			deal.ErrInvalidConfiguration, constants.MaxScheduleDays, day)
	}
	return schedule.BreakdownFor(normalized, in.Settings.NewMoney, day), nil
}

func (c *Calculator) evaluate(in Input) (*Result, error) {
	normalized, err := position.Normalize(in.Positions, in.AsOf)
	if err != nil {
		return nil, err
	}
	terms, err := c.resolver.Resolve(normalized, in.Settings)
	if err != nil {
		return nil, err
	}

	sched, simErr := c.simulator.Simulate(normalized, schedule.Params{
		NewMoney:        in.Settings.NewMoney,
		NewDailyPayment: terms.NewDailyPayment,
		Rate:            in.Settings.Rate,
		OriginationFee:  terms.ConsolidationFees,
	})
	if simErr != nil && !errors.Is(simErr, schedule.ErrNonTerminating) {
		return nil, simErr
	}

	totals := position.Sum(normalized)
	weeks := aggregate.Weekly(sched.Days)
	res := &Result{
		AsOf:           in.AsOf,
		Terms:          terms,
		Totals:         totals,
		Positions:      normalized,
		DailySchedule:  sched.Days,
		WeeklySchedule: weeks,
		Metrics:        aggregate.Compute(sched.Days, terms, totals, in.MonthlyRevenue),
		Day1:           aggregate.Day1Summary(sched.Days, terms, in.Settings),
		Projection:     projection.Project(normalized, sched.Days, weeks, terms, in.Settings),
		Discrepancies:  position.Discrepancies(normalized),
		Incomplete:     !sched.Complete,
		Warnings:       warnings(totals, sched),
	}

	for _, d := range res.Discrepancies {
		c.logger.Warn(fmt.Sprintf("balance discrepancy on position %d (%s): manual %.2f, auto %.2f", d.ID, d.Entity, d.Manual, d.Auto),
			zap.String("op", "engine.Evaluate"),
		)
	}
	c.logger.Debug(fmt.Sprintf("evaluated deal over %d days", len(sched.Days)),
		zap.String("op", "engine.Evaluate"),
		zap.String("branch", string(terms.Branch)),
		zap.Bool("incomplete", res.Incomplete),
	)

	return res, simErr
}

func warnings(totals position.Totals, sched schedule.Schedule) []string {
	out := []string{}
	if totals.UnknownBalances > 0 {
		out = append(out, fmt.Sprintf("%d position(s) have no known balance and are excluded from the deal", totals.UnknownBalances))
	}
	if totals.Discrepancies > 0 {
		out = append(out, fmt.Sprintf("%d position(s) have a manual balance that disagrees with the funded-date estimate", totals.Discrepancies))
	}
	if !sched.Complete {
		out = append(out, "schedule did not pay off within "+strconv.Itoa(constants.MaxScheduleDays)+" business days")
	}
	return out
}

// Key hashes the canonical JSON encoding of the input.
func Key(in Input) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("unable to encode evaluation input: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

func (c *Calculator) lookup(ctx context.Context, key string) (*Result, bool) {
	data, err := c.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		telemetry.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		telemetry.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed",
			zap.String("op", "engine.Evaluate"),
			zap.Error(err),
		)
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		telemetry.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("discarding unreadable cache entry",
			zap.String("op", "engine.Evaluate"),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	telemetry.CacheRequests.WithLabelValues("hit").Inc()
	return &res, true
}

func (c *Calculator) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err == nil {
		err = c.cache.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("unable to cache evaluation",
			zap.String("op", "engine.Evaluate"),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
