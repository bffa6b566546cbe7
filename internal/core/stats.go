package core

import (
	"math"
	"time"
)

// DefaultMonthsBack is the trailing window used by the statistics view.
const DefaultMonthsBack = 6

type (
	// Totals holds cumulative sums and counts over a snapshot.
	Totals struct {
		Income       float64
		Expense      float64
		Net          float64
		IncomeCount  int
		ExpenseCount int
	}

	// MonthlySeries is a fixed-window calendar-month breakdown, oldest month
	// first. Labels, Income and Expense are parallel and always the same
	// length. ScaleMax is floored at 1 so chart normalization never divides
	// by zero.
	MonthlySeries struct {
		Labels   []string
		Income   []float64
		Expense  []float64
		ScaleMax float64
	}
)

// ComputeTotals sums a snapshot of one owner's records. A record whose amount
// is not a finite number contributes zero to its sum but still counts toward
// its kind's count; a single bad record never fails the whole computation.
// Pure: the result depends only on the input.
func ComputeTotals(records []TransactionRecord) Totals {
	var t Totals
	for _, r := range records {
		amt := finiteAmount(r.Amount)
		if r.Kind == KindIncome {
			t.Income += amt
			t.IncomeCount++
		} else {
			t.Expense += amt
			t.ExpenseCount++
		}
	}
	t.Net = t.Income - t.Expense
	return t
}

// BuildMonthlySeries buckets records into monthsBack consecutive calendar
// months ending at the month containing reference. Records outside the window
// or without a usable CreatedAt are excluded from the series (they still count
// in ComputeTotals). monthsBack <= 0 falls back to DefaultMonthsBack; a zero
// reference means now, so pass one explicitly for reproducible output.
func BuildMonthlySeries(records []TransactionRecord, monthsBack int, reference time.Time) MonthlySeries {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	if reference.IsZero() {
		reference = time.Now()
	}

	// Months count linearly as year*12+month so window membership is a
	// single index comparison.
	end := monthIndex(reference)
	start := end - monthsBack + 1

	s := MonthlySeries{
		Labels:  make([]string, monthsBack),
		Income:  make([]float64, monthsBack),
		Expense: make([]float64, monthsBack),
	}
	for i := 0; i < monthsBack; i++ {
		s.Labels[i] = time.Month((start+i)%12 + 1).String()[:3]
	}

	for _, r := range records {
		if r.CreatedAt.IsZero() {
			continue
		}
		idx := monthIndex(r.CreatedAt) - start
		if idx < 0 || idx >= monthsBack {
			continue
		}
		amt := finiteAmount(r.Amount)
		if r.Kind == KindIncome {
			s.Income[idx] += amt
		} else {
			s.Expense[idx] += amt
		}
	}

	s.ScaleMax = 1
	for i := 0; i < monthsBack; i++ {
		s.ScaleMax = math.Max(s.ScaleMax, math.Max(s.Income[i], s.Expense[i]))
	}
	return s
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func finiteAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
