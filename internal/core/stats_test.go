package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func rec(kind Kind, amount float64, created time.Time) TransactionRecord {
	return TransactionRecord{Kind: kind, Title: "t", Amount: amount, CreatedAt: created}
}

func TestComputeTotalsEmpty(t *testing.T) {
	got := ComputeTotals(nil)
	want := Totals{}
	if got != want {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestComputeTotals(t *testing.T) {
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	records := []TransactionRecord{
		rec(KindIncome, 100, jan),
		rec(KindExpense, 40, jan),
		rec(KindIncome, 50, feb),
	}
	got := ComputeTotals(records)
	if got.Income != 150 || got.Expense != 40 || got.Net != 110 {
		t.Fatalf("unexpected sums: %+v", got)
	}
	if got.IncomeCount != 2 || got.ExpenseCount != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
}

func TestComputeTotalsInvariants(t *testing.T) {
	cases := [][]TransactionRecord{
		nil,
		{rec(KindIncome, 1, time.Time{})},
		{rec(KindIncome, 2.5, time.Time{}), rec(KindExpense, 0.5, time.Time{})},
		{rec(KindExpense, 10, time.Time{}), rec(KindExpense, 20, time.Time{}), rec(KindIncome, 5, time.Time{})},
	}
	for i, records := range cases {
		got := ComputeTotals(records)
		if got.Net != got.Income-got.Expense {
			t.Fatalf("case %d: net %v != income-expense %v", i, got.Net, got.Income-got.Expense)
		}
		if got.IncomeCount+got.ExpenseCount != len(records) {
			t.Fatalf("case %d: counts %d+%d != %d records", i, got.IncomeCount, got.ExpenseCount, len(records))
		}
	}
}

func TestComputeTotalsBadAmountCountsButAddsZero(t *testing.T) {
	records := []TransactionRecord{
		rec(KindIncome, math.NaN(), time.Time{}),
		rec(KindIncome, 10, time.Time{}),
		rec(KindExpense, math.Inf(1), time.Time{}),
	}
	got := ComputeTotals(records)
	if got.Income != 10 {
		t.Fatalf("NaN amount leaked into income sum: %v", got.Income)
	}
	if got.Expense != 0 {
		t.Fatalf("Inf amount leaked into expense sum: %v", got.Expense)
	}
	if got.IncomeCount != 2 || got.ExpenseCount != 1 {
		t.Fatalf("bad-amount records must still be counted: %+v", got)
	}
}

func TestBuildMonthlySeriesShape(t *testing.T) {
	ref := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := BuildMonthlySeries(nil, 6, ref)
	if len(s.Labels) != 6 || len(s.Income) != 6 || len(s.Expense) != 6 {
		t.Fatalf("expected arrays of length 6, got %d/%d/%d", len(s.Labels), len(s.Income), len(s.Expense))
	}
	wantLabels := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}
	if !reflect.DeepEqual(s.Labels, wantLabels) {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
	if s.ScaleMax != 1 {
		t.Fatalf("empty series must keep ScaleMax floor of 1, got %v", s.ScaleMax)
	}
}

func TestBuildMonthlySeriesYearBoundary(t *testing.T) {
	ref := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	s := BuildMonthlySeries(nil, 6, ref)
	wantLabels := []string{"Sep", "Oct", "Nov", "Dec", "Jan", "Feb"}
	if !reflect.DeepEqual(s.Labels, wantLabels) {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
}

func TestBuildMonthlySeriesWindowBoundary(t *testing.T) {
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	records := []TransactionRecord{
		// First day of the oldest included month: in.
		rec(KindIncome, 100, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		// One month older: out.
		rec(KindIncome, 999, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)),
		// Reference month: in.
		rec(KindExpense, 40, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)),
		// Missing timestamp: out.
		rec(KindExpense, 7, time.Time{}),
	}
	s := BuildMonthlySeries(records, 6, ref)
	if s.Income[0] != 100 {
		t.Fatalf("oldest-month record excluded: %v", s.Income)
	}
	if s.Expense[5] != 40 {
		t.Fatalf("reference-month record misplaced: %v", s.Expense)
	}
	var totalIncome float64
	for _, v := range s.Income {
		totalIncome += v
	}
	if totalIncome != 100 {
		t.Fatalf("out-of-window record leaked into series: %v", s.Income)
	}
	if s.ScaleMax != 100 {
		t.Fatalf("ScaleMax = %v, want 100", s.ScaleMax)
	}
}

func TestBuildMonthlySeriesBadAmountExcluded(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []TransactionRecord{
		rec(KindIncome, math.NaN(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}
	s := BuildMonthlySeries(records, 6, ref)
	if s.Income[5] != 0 {
		t.Fatalf("NaN amount leaked into bucket: %v", s.Income)
	}
	if s.ScaleMax != 1 {
		t.Fatalf("ScaleMax = %v, want 1", s.ScaleMax)
	}
}

func TestBuildMonthlySeriesDefaults(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := BuildMonthlySeries(nil, 0, ref)
	if len(s.Labels) != DefaultMonthsBack {
		t.Fatalf("expected default window of %d, got %d", DefaultMonthsBack, len(s.Labels))
	}
}

func TestStatsDeterminism(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []TransactionRecord{
		rec(KindIncome, 12.34, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)),
		rec(KindExpense, 5.5, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	if ComputeTotals(records) != ComputeTotals(records) {
		t.Fatalf("ComputeTotals is not idempotent")
	}
	a := BuildMonthlySeries(records, 6, ref)
	b := BuildMonthlySeries(records, 6, ref)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("BuildMonthlySeries is not idempotent: %+v vs %+v", a, b)
	}
}
