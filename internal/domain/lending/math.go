package lending

import (
	"math/big"
	"time"
)

const (
	bpsDenominator   = 10000
	secondsPerDay    = 86400
	secondsPerHour   = 3600
	secondsPerMinute = 60
	StablecoinUnits  = 6
)

// AmountDue is principal plus floor(principal*rate/10000).
func AmountDue(amount, interestRateBps *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Set(amount)
	if interestRateBps == nil {
		return out
	}
	interest := new(big.Int).Mul(amount, interestRateBps)
	interest.Quo(interest, big.NewInt(bpsDenominator))
	return out.Add(out, interest)
}

type Remaining struct {
	Days    int64
	Hours   int64
	Minutes int64
	DueDate time.Time
	// Overdue is set once the due date has passed, not when under a minute is left.
	Overdue bool
}

// RemainingTime splits the time left until start+period into days, hours and
// minutes. An overdue loan reports zeros, never negative values.
func RemainingTime(startTime, loanPeriod *big.Int, now time.Time) Remaining {
	end := dueUnix(startTime, loanPeriod)
	out := Remaining{DueDate: time.Unix(end, 0).UTC()}

	left := end - now.Unix()
	if left <= 0 {
		out.Overdue = true
		return out
	}
	out.Days = left / secondsPerDay
	out.Hours = (left % secondsPerDay) / secondsPerHour
	out.Minutes = (left % secondsPerHour) / secondsPerMinute
	return out
}

// Progress is the elapsed share of the loan period in percent, clamped to [0, 100].
func Progress(startTime, loanPeriod *big.Int, now time.Time) float64 {
	if loanPeriod == nil || loanPeriod.Sign() <= 0 {
		return 100
	}
	elapsed := float64(now.Unix() - toInt64(startTime))
	pct := elapsed / float64(toInt64(loanPeriod)) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// InterestPercent renders basis points as whole percent, truncated.
func InterestPercent(interestRateBps *big.Int) int64 {
	return toInt64(interestRateBps) / 100
}

func DurationDays(loanPeriod *big.Int) int64 {
	return toInt64(loanPeriod) / secondsPerDay
}

// FormatUnits renders an integer token amount with the given decimals,
// trimming trailing zeros of the fraction.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	digits := abs.String()
	if decimals > 0 {
		for len(digits) <= decimals {
			digits = "0" + digits
		}
	}
	whole := digits[:len(digits)-decimals]
	frac := digits[len(digits)-decimals:]
	for len(frac) > 0 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func dueUnix(startTime, loanPeriod *big.Int) int64 {
	return toInt64(startTime) + toInt64(loanPeriod)
}

func toInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}
