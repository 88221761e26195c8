package lending

import (
	"math/big"
	"testing"
	"time"
)

func TestAmountDueAddsFlooredInterest(t *testing.T) {
	due := AmountDue(big.NewInt(1_000_000), big.NewInt(500))
	if due.Cmp(big.NewInt(1_050_000)) != 0 {
		t.Fatalf("expected 1050000, got %s", due)
	}

	// 333 * 25 / 10000 = 0.8325 -> floored to 0
	due = AmountDue(big.NewInt(333), big.NewInt(25))
	if due.Cmp(big.NewInt(333)) != 0 {
		t.Fatalf("expected interest to floor to zero, got %s", due)
	}
}

func TestAmountDueDoesNotMutateInput(t *testing.T) {
	amount := big.NewInt(2_000_000)
	_ = AmountDue(amount, big.NewInt(1000))
	if amount.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("input mutated: %s", amount)
	}
}

func TestRemainingTimeClampsWhenOverdue(t *testing.T) {
	start := int64(1_700_000_000)
	now := time.Unix(start+2_600_000, 0)

	r := RemainingTime(big.NewInt(start), big.NewInt(2_592_000), now)
	if r.Days != 0 || r.Hours != 0 || r.Minutes != 0 {
		t.Fatalf("expected zeros for overdue loan, got %+v", r)
	}
	if !r.Overdue {
		t.Fatalf("expected overdue")
	}
	if r.DueDate.Unix() != start+2_592_000 {
		t.Fatalf("unexpected due date: %s", r.DueDate)
	}
}

func TestRemainingTimeSplitsDuration(t *testing.T) {
	start := int64(1_700_000_000)
	// 2 days, 3 hours, 4 minutes and 59 seconds left
	left := int64(2*86400 + 3*3600 + 4*60 + 59)
	now := time.Unix(start+2_592_000-left, 0)

	r := RemainingTime(big.NewInt(start), big.NewInt(2_592_000), now)
	if r.Days != 2 || r.Hours != 3 || r.Minutes != 4 {
		t.Fatalf("unexpected split: %+v", r)
	}
}

func TestRemainingTimeUnderAMinuteIsNotOverdue(t *testing.T) {
	start := int64(1_700_000_000)
	now := time.Unix(start+2_592_000-30, 0)

	r := RemainingTime(big.NewInt(start), big.NewInt(2_592_000), now)
	if r.Days != 0 || r.Hours != 0 || r.Minutes != 0 {
		t.Fatalf("expected zero whole minutes, got %+v", r)
	}
	if r.Overdue {
		t.Fatalf("30 seconds left must not be overdue")
	}

	r = RemainingTime(big.NewInt(start), big.NewInt(2_592_000), time.Unix(start+2_592_000, 0))
	if !r.Overdue {
		t.Fatalf("reaching the due date is overdue")
	}
}

func TestProgressClamps(t *testing.T) {
	start := big.NewInt(1000)
	period := big.NewInt(100)

	if p := Progress(start, period, time.Unix(900, 0)); p != 0 {
		t.Fatalf("expected 0 before start, got %v", p)
	}
	if p := Progress(start, period, time.Unix(1050, 0)); p != 50 {
		t.Fatalf("expected 50, got %v", p)
	}
	if p := Progress(start, period, time.Unix(5000, 0)); p != 100 {
		t.Fatalf("expected 100 after due, got %v", p)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := map[string]struct {
		amount   int64
		decimals int
	}{
		"1.05":     {1_050_000, 6},
		"10":       {10_000_000, 6},
		"0.000001": {1, 6},
		"0":        {0, 6},
		"42":       {42, 0},
	}
	for want, tc := range cases {
		if got := FormatUnits(big.NewInt(tc.amount), tc.decimals); got != want {
			t.Fatalf("FormatUnits(%d, %d) = %s, want %s", tc.amount, tc.decimals, got, want)
		}
	}
}

func TestDisplayHelpers(t *testing.T) {
	if InterestPercent(big.NewInt(550)) != 5 {
		t.Fatalf("expected truncated 5%%")
	}
	if DurationDays(big.NewInt(2_592_000)) != 30 {
		t.Fatalf("expected 30 days")
	}
}
