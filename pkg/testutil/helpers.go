// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/reverse-consolidation/internal/engine"
	"github.com/iwvelando/reverse-consolidation/internal/position"
	"github.com/iwvelando/reverse-consolidation/internal/schedule"
)

// FindPosition finds a position by id in an evaluation.
// Returns a pointer to the position if found, nil otherwise.
func FindPosition(res *engine.Result, id int) *position.WithDays {
	for i := range res.Positions {
		if res.Positions[i].ID == id {
			return &res.Positions[i]
		}
	}
	return nil
}

// FindDay returns the simulated day, or nil past the end of the schedule.
func FindDay(res *engine.Result, day int) *schedule.Day {
	if day < 1 || day > len(res.DailySchedule) {
		return nil
	}
	return &res.DailySchedule[day-1]
}

// ScheduleTotals sums the infusions and withdrawals over a daily schedule.
func ScheduleTotals(days []schedule.Day) (infused, withdrawn float64) {
	for _, d := range days {
		infused += d.CashInfusion
		withdrawn += d.DailyWithdrawal
	}
	return infused, withdrawn
}
