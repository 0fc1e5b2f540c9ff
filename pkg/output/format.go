// Package output provides utilities for formatting and displaying deal evaluations.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/reverse-consolidation/internal/engine"
	"github.com/iwvelando/reverse-consolidation/pkg/datetime"
	"github.com/iwvelando/reverse-consolidation/pkg/format"
	"github.com/iwvelando/reverse-consolidation/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, merchant string, res *engine.Result) {
	p := message.NewPrinter(language.English)
	t := res.Terms
	m := res.Metrics

	title := "deal"
	if merchant != "" {
		title = merchant
	}
	_, _ = p.Fprintf(w, "--- Reverse consolidation for %s (as of %s) ---\n", title, datetime.FormatBusinessDate(res.AsOf))
	if res.Incomplete {
		_, _ = p.Fprintf(w, "!!! Schedule is INCOMPLETE: the balance was not repaid within %d business days\n", len(res.DailySchedule))
	}

	_, _ = p.Fprintf(w, "Proposal: fund %s, collect %s per day over %d debits (%s total)\n",
		format.WholeCurrency(t.TotalFunding), format.Currency(t.NewDailyPayment), t.NumberOfDebits,
		format.WholeCurrency(t.TotalPayback))

	_, _ = p.Fprintf(w, "\nDeal terms (%s rule)\n", t.Branch)
	rows := [][2]string{
		{"Total advance", format.Currency(t.TotalAdvanceAmount)},
		{"Total funding", format.Currency(t.TotalFunding)},
		{"Consolidation fees", format.Currency(t.ConsolidationFees)},
		{"Net advance", format.Currency(t.NetAdvance)},
		{"Old daily payment", format.Currency(t.IncludedDailyPayment)},
		{"New daily payment", format.Currency(t.NewDailyPayment)},
		{"New weekly payment", format.Currency(t.NewWeeklyPayment)},
		{"Number of debits", p.Sprintf("%d", t.NumberOfDebits)},
		{"Total payback", format.Currency(t.TotalPayback)},
		{"Daily savings", format.Currency(t.DailySavings)},
		{"Weekly savings", format.Currency(t.WeeklySavings)},
		{"Monthly savings", format.Currency(t.MonthlySavings)},
		{"Payment reduction", format.Percent(t.ReductionPercent)},
	}
	if !mathutil.IsZero(t.BrokerCommissionAmount) {
		rows = append(rows, [2]string{"Broker commission", format.Currency(t.BrokerCommissionAmount)})
	}
	writeRows(w, rows)

	_, _ = fmt.Fprintf(w, "\nPositions\n")
	_, _ = fmt.Fprintf(w, "ID | Entity | Balance | Daily Payment | Days Left | Last Payment | Included\n")
	_, _ = fmt.Fprintf(w, "__ | ______ | _______ | _____________ | _________ | ____________ | ________\n")
	for _, pos := range res.Positions {
		balance := "unknown"
		if pos.Resolved.Known {
			balance = format.Currency(pos.Resolved.Effective)
		}
		included := "no"
		if pos.Included {
			included = "yes"
		}
		_, _ = p.Fprintf(w, "%d | %s | %s | %s | %d | %s | %s\n", pos.ID, pos.Entity, balance,
			format.Currency(pos.DailyPayment), pos.DaysLeft, datetime.FormatBusinessDate(pos.LastPaymentDate), included)
	}

	_, _ = fmt.Fprintf(w, "\nWeekly schedule\n")
	_, _ = fmt.Fprintf(w, "Week | Cash Infusion | Debits | End Exposure\n")
	_, _ = fmt.Fprintf(w, "____ | _____________ | ______ | ____________\n")
	for _, week := range res.WeeklySchedule {
		_, _ = p.Fprintf(w, "%d | %s | %s | %s\n", week.Week, format.Currency(week.CashInfusion),
			format.Currency(week.TotalDebits), format.Currency(week.EndExposure))
	}

	_, _ = fmt.Fprintf(w, "\nMetrics\n")
	writeRows(w, [][2]string{
		{"Day 1 gross contract", format.Currency(res.Day1.GrossContract) + " (" + res.Day1.FeeLabel + ")"},
		{"Total days", p.Sprintf("%d", m.TotalDays)},
		{"Max exposure", p.Sprintf("%s on day %d", format.Currency(m.MaxExposure), m.MaxExposureDay)},
		{"Last day exposed", p.Sprintf("%d (%s of the term)", m.LastDayExposed, format.Percent(m.PercentDaysInRed))},
		{"Cash infused", format.Currency(m.TotalCashInfusion)},
		{"Payback collected", format.Currency(m.ActualPaybackCollected)},
		{"Profit", format.Currency(m.Profit)},
		{"Net profit", format.Currency(m.NetProfit)},
		{"Deal true factor", format.Factor(m.DealTrueFactor)},
		{"Current leverage", format.Percent(m.CurrentLeverage)},
		{"New leverage", format.Percent(m.NewLeverage)},
	})

	proj := res.Projection
	_, _ = fmt.Fprintf(w, "\nCash buildup\n")
	for _, ms := range proj.Milestones {
		_, _ = p.Fprintf(w, "%s (day %d): %s\n", ms.Label, ms.Day, format.Currency(ms.Savings))
	}
	if c := proj.Crossover; c != nil {
		_, _ = p.Fprintf(w, "Crossover in week %d: peak cash %s, %d position(s) cleared (%s)\n",
			c.Week, format.Currency(c.PeakCash), c.PositionsCleared, format.Currency(c.DebtCleared))
	}
	_, _ = p.Fprintf(w, "Falloff on day %d: %s accumulated, %s still owed, %d days remaining\n",
		proj.Falloff.FalloffDay, format.Currency(proj.Falloff.CashAccumulated),
		format.Currency(proj.Falloff.BalanceWithUs), proj.Falloff.DaysRemainingAfterFalloff)
	for _, e := range proj.EarlyPayoffs {
		if !e.Applicable {
			_, _ = p.Fprintf(w, "Early payoff %d days after falloff: not applicable\n", e.DaysAfterFalloff)
			continue
		}
		_, _ = p.Fprintf(w, "Early payoff by day %d at %s off: pay %s, save %s\n", e.PayoffDeadline,
			format.Percent(e.DiscountPercent*100), format.Currency(e.PayoffAmount), format.Currency(e.Savings))
	}

	if len(res.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "\nWarnings\n")
		for _, warning := range res.Warnings {
			_, _ = fmt.Fprintf(w, "- %s\n", warning)
		}
	}
}

func writeRows(w io.Writer, rows [][2]string) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%-*s | %s\n", width, row[0], row[1])
	}
}

// CsvFormat writes the daily schedule in comma-separated value format.
// Amounts are rounded to cents first so residues never print as -0.00.
func CsvFormat(w io.Writer, res *engine.Result) {
	_, _ = fmt.Fprintf(w, `"day","week","cash infusion","daily withdrawal","exposure on reverse","rtr balance"`+"\n")
	for _, d := range res.DailySchedule {
		_, _ = fmt.Fprintf(w, `"%d","%d","%.2f","%.2f","%.2f","%.2f"`+"\n",
			d.Day, d.Week, mathutil.Round(d.CashInfusion), mathutil.Round(d.DailyWithdrawal),
			mathutil.Round(d.ExposureOnReverse), mathutil.Round(d.RTRBalance))
	}
}

// CsvString returns the CSV rendering as a string.
func CsvString(res *engine.Result) string {
	var b strings.Builder
	CsvFormat(&b, res)
	return b.String()
}

// JSONFormat writes the full evaluation as indented JSON.
func JSONFormat(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
