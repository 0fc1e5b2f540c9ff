// Package position normalizes raw position records into the balances and
// daily payments the deal engine works with.
package position

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/iwvelando/reverse-consolidation/pkg/datetime"
	"github.com/iwvelando/reverse-consolidation/pkg/mathutil"
)

// ErrInvalidPosition is returned for position records that violate the
// non-negativity rules on balance, payment or funded amount.
var ErrInvalidPosition = errors.New("invalid position")

// Position is one existing funder's advance against the merchant.
type Position struct {
	ID               int        `json:"id"`
	Entity           string     `json:"entity"`
	Balance          *float64   `json:"balance"` // nil = unknown
	DailyPayment     float64    `json:"dailyPayment"`
	IsOurPosition    bool       `json:"isOurPosition"`
	IncludeInReverse bool       `json:"includeInReverse"`
	FundedDate       *time.Time `json:"fundedDate,omitempty"`
	AmountFunded     *float64   `json:"amountFunded,omitempty"`
}

// Balance describes how a position's effective balance was resolved.
type Balance struct {
	Effective   float64  `json:"effective"`
	Known       bool     `json:"known"`
	Manual      *float64 `json:"manual,omitempty"`
	Auto        *float64 `json:"auto,omitempty"`
	Discrepancy bool     `json:"discrepancy"`
}

// WithDays is a position annotated with its resolved balance and payoff timing.
type WithDays struct {
	Position
	Resolved        Balance   `json:"resolvedBalance"`
	DaysLeft        int       `json:"daysLeft"`
	LastPaymentDate time.Time `json:"lastPaymentDate"`
	Included        bool      `json:"included"`
}

// Validate checks the record-level invariants.
func (p Position) Validate() error {
	if p.DailyPayment < 0 || math.IsNaN(p.DailyPayment) {
		return fmt.Errorf("%w: position %d (%s) has negative daily payment %.2f", ErrInvalidPosition, p.ID, p.Entity, p.DailyPayment)
	}
	if p.Balance != nil && *p.Balance < 0 {
		return fmt.Errorf("%w: position %d (%s) has negative balance %.2f", ErrInvalidPosition, p.ID, p.Entity, *p.Balance)
	}
	if p.AmountFunded != nil && *p.AmountFunded < 0 {
		return fmt.Errorf("%w: position %d (%s) has negative amount funded %.2f", ErrInvalidPosition, p.ID, p.Entity, *p.AmountFunded)
	}
	return nil
}

// AutoBalance estimates the current balance from the funded amount and the
// business days elapsed since funding, floored at zero. The estimate is
// relative to asOf. It reports false when the provenance is incomplete.
func (p Position) AutoBalance(asOf time.Time) (float64, bool) {
	if p.FundedDate == nil || p.AmountFunded == nil {
		return 0, false
	}
	elapsed := datetime.BusinessDaysBetween(*p.FundedDate, asOf)
	return math.Max(0, *p.AmountFunded-p.DailyPayment*float64(elapsed)), true
}

// ResolveBalance determines the effective balance. A manual balance is
// authoritative; the auto-derived estimate is advisory and only used when no
// manual balance exists. A disagreement of more than a cent is flagged, never merged.
func (p Position) ResolveBalance(asOf time.Time) Balance {
	var b Balance
	if p.Balance != nil {
		manual := *p.Balance
		b.Manual = &manual
	}
	if auto, ok := p.AutoBalance(asOf); ok {
		b.Auto = &auto
	}

	switch {
	case b.Manual != nil:
		b.Effective = *b.Manual
		b.Known = true
		if b.Auto != nil && !mathutil.WithinTolerance(*b.Manual, *b.Auto, constants.CurrencyTolerance) {
			b.Discrepancy = true
		}
	case b.Auto != nil:
		b.Effective = *b.Auto
		b.Known = true
	}
	return b
}

// EffectiveBalance returns the balance the engine uses, or false when the
// balance is unknown.
func (p Position) EffectiveBalance(asOf time.Time) (float64, bool) {
	b := p.ResolveBalance(asOf)
	return b.Effective, b.Known
}

// DaysLeft is the number of business days until the position clears under
// its current payment. It is 0 when the payment or balance is not positive.
func DaysLeft(balance, dailyPayment float64) int {
	if dailyPayment > 0 && balance > 0 {
		return mathutil.CeilDiv(balance, dailyPayment)
	}
	return 0
}

// IsExternal reports whether the position belongs to another funder.
func (p Position) IsExternal() bool {
	return !p.IsOurPosition
}

// Normalize validates every position and annotates it with its resolved
// balance, days left and last payment date. Order is preserved and positions
// with unknown balances are retained.
func Normalize(positions []Position, asOf time.Time) ([]WithDays, error) {
	out := make([]WithDays, 0, len(positions))
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		resolved := p.ResolveBalance(asOf)
		w := WithDays{
			Position: p,
			Resolved: resolved,
		}
		if resolved.Known {
			w.DaysLeft = DaysLeft(resolved.Effective, p.DailyPayment)
		}
		if w.DaysLeft > 0 {
			w.LastPaymentDate = datetime.AddBusinessDays(asOf, w.DaysLeft)
		}
		w.Included = p.IsExternal() && p.IncludeInReverse && resolved.Known && resolved.Effective > 0
		out = append(out, w)
	}
	return out, nil
}

// Included returns the positions participating in the buyout.
func Included(positions []WithDays) []WithDays {
	var out []WithDays
	for _, p := range positions {
		if p.Included {
			out = append(out, p)
		}
	}
	return out
}

// Totals aggregates the balance and payment sums the resolver needs.
type Totals struct {
	IncludedBalance      float64 `json:"includedBalance"`
	IncludedDailyPayment float64 `json:"includedDailyPayment"`
	// AllDailyPayment covers every external position regardless of inclusion
	// or balance knowledge; it drives current leverage.
	AllDailyPayment float64 `json:"allDailyPayment"`
	UnknownBalances int     `json:"unknownBalances"`
	Discrepancies   int     `json:"discrepancies"`
}

// Sum computes Totals over normalized positions.
func Sum(positions []WithDays) Totals {
	var t Totals
	for _, p := range positions {
		if p.IsExternal() {
			t.AllDailyPayment += p.DailyPayment
		}
		if !p.Resolved.Known {
			t.UnknownBalances++
		}
		if p.Resolved.Discrepancy {
			t.Discrepancies++
		}
		if p.Included {
			t.IncludedBalance += p.Resolved.Effective
			t.IncludedDailyPayment += p.DailyPayment
		}
	}
	return t
}

// Discrepancy describes a disagreement between the manual and the
// auto-derived balance of a position.
type Discrepancy struct {
	ID         int     `json:"id"`
	Entity     string  `json:"entity"`
	Manual     float64 `json:"manual"`
	Auto       float64 `json:"auto"`
	Difference float64 `json:"difference"`
}

// Discrepancies lists every flagged balance disagreement.
func Discrepancies(positions []WithDays) []Discrepancy {
	var out []Discrepancy
	for _, p := range positions {
		if !p.Resolved.Discrepancy {
			continue
		}
		out = append(out, Discrepancy{
			ID:         p.ID,
			Entity:     p.Entity,
			Manual:     *p.Resolved.Manual,
			Auto:       *p.Resolved.Auto,
			Difference: *p.Resolved.Manual - *p.Resolved.Auto,
		})
	}
	return out
}
