package lending

import (
	"math/big"
	"time"
)

// LoanSummary is the repayment card for one loan: what is owed, when, and
// how far along the period is.
type LoanSummary struct {
	Amount           string    `json:"amount"`
	AmountDue        string    `json:"amountDue"`
	AmountDueRaw     *big.Int  `json:"amountDueRaw"`
	InterestPercent  int64     `json:"interestPercent"`
	DurationDays     int64     `json:"durationDays"`
	DaysRemaining    int64     `json:"daysRemaining"`
	HoursRemaining   int64     `json:"hoursRemaining"`
	MinutesRemaining int64     `json:"minutesRemaining"`
	DueDate          time.Time `json:"dueDate"`
	Overdue          bool      `json:"overdue"`
	Progress         float64   `json:"progress"`
}

func Summarize(l Loan, now time.Time) LoanSummary {
	due := AmountDue(l.Amount, l.InterestRate)
	left := RemainingTime(l.StartTime, l.LoanPeriod, now)
	return LoanSummary{
		Amount:           FormatUnits(l.Amount, StablecoinUnits),
		AmountDue:        FormatUnits(due, StablecoinUnits),
		AmountDueRaw:     due,
		InterestPercent:  InterestPercent(l.InterestRate),
		DurationDays:     DurationDays(l.LoanPeriod),
		DaysRemaining:    left.Days,
		HoursRemaining:   left.Hours,
		MinutesRemaining: left.Minutes,
		DueDate:          left.DueDate,
		Overdue:          left.Overdue,
		Progress:         Progress(l.StartTime, l.LoanPeriod, now),
	}
}
