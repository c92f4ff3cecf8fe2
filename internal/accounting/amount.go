package accounting

import "github.com/shopspring/decimal"

// BalanceTolerance is the largest debit/credit difference still treated as
// balanced. The comparison is strict.
var BalanceTolerance = decimal.New(1, -3)

// SumLines totals the debit and credit sides of lines.
func SumLines(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Balanced reports whether |debit - credit| < BalanceTolerance.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(BalanceTolerance)
}

// ValidateLines checks line shape and the double-entry invariant. Account
// resolution is left to the caller since it needs store access.
func ValidateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range lines {
		if line.AccountID == 0 {
			return &InvalidLineError{Line: idx, Reason: "missing account"}
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return &InvalidLineError{Line: idx, Reason: "negative amount"}
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return &InvalidLineError{Line: idx, Reason: "must carry exactly one of debit or credit"}
		}
	}
	debit, credit := SumLines(lines)
	if !debit.IsPositive() || !Balanced(debit, credit) {
		return &UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return nil
}

// ReverseLines swaps debit and credit on every line.
func ReverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			LineOrder: idx + 1,
			Memo:      line.Memo,
		})
	}
	return out
}
