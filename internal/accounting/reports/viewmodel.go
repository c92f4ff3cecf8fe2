package reports

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// TextView renders statements as aligned plain text for exports and terminals.
type TextView struct {
	printer *message.Printer
}

// NewTextView builds a view formatting amounts for the given locale. An empty
// or unknown tag falls back to English.
func NewTextView(locale string) TextView {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return TextView{printer: message.NewPrinter(tag)}
}

// Amount formats a decimal with grouping and two fraction digits.
func (v TextView) Amount(d decimal.Decimal) string {
	return v.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

// IncomeStatement writes the profit and loss report.
func (v TextView) IncomeStatement(w io.Writer, r IncomeStatement) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Income statement %s to %s\t\n", r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))
	v.plSection(tw, r.Revenue)
	v.plSection(tw, r.Expense)
	fmt.Fprintf(tw, "Net income\t%s\t\n", v.Amount(r.NetIncome))
	return tw.Flush()
}

func (v TextView) plSection(w io.Writer, s ProfitAndLossSection) {
	fmt.Fprintf(w, "%s\t\t\n", s.Label)
	for _, acc := range s.Accounts {
		fmt.Fprintf(w, "  %s %s\t%s\t\n", acc.Code, acc.Name, v.Amount(acc.Amount))
	}
	fmt.Fprintf(w, "Total %s\t%s\t\n", s.Label, v.Amount(s.Total))
}

// BalanceSheet writes the balance sheet report.
func (v TextView) BalanceSheet(w io.Writer, r BalanceSheetReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Balance sheet as of %s\t\n", r.AsOf.Format(time.DateOnly))
	v.bsSection(tw, r.Assets)
	v.bsSection(tw, r.Liabilities)
	v.bsSection(tw, r.Equity)
	fmt.Fprintf(tw, "Total liabilities and equity\t%s\t\n", v.Amount(r.TotalLiabilitiesAndEquity))
	return tw.Flush()
}

func (v TextView) bsSection(w io.Writer, s BalanceSheetSection) {
	fmt.Fprintf(w, "%s\t\t\n", s.Label)
	for _, acc := range s.Accounts {
		fmt.Fprintf(w, "  %s %s\t%s\t\n", acc.Code, acc.Name, v.Amount(acc.Balance))
	}
	fmt.Fprintf(w, "Total %s\t%s\t\n", s.Label, v.Amount(s.Total))
}

// TrialBalance writes the grouped period worksheet.
func (v TextView) TrialBalance(w io.Writer, r PeriodTrialBalance) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Trial balance %s\tOpening\tDebit\tCredit\tClosing\t\n", r.Period)
	for _, grp := range r.Groups {
		for _, acc := range grp.Accounts {
			fmt.Fprintf(tw, "  %s %s\t%s\t%s\t%s\t%s\t\n", acc.Code, acc.Name,
				v.Amount(acc.Opening), v.Amount(acc.Debit), v.Amount(acc.Credit), v.Amount(acc.Closing))
		}
		fmt.Fprintf(tw, "Group %s\t%s\t%s\t%s\t%s\t\n", grp.Key,
			v.Amount(grp.Opening), v.Amount(grp.Debit), v.Amount(grp.Credit), v.Amount(grp.Closing))
	}
	fmt.Fprintf(tw, "Total\t%s\t%s\t%s\t%s\t\n",
		v.Amount(r.TotalOpening), v.Amount(r.TotalDebit), v.Amount(r.TotalCredit), v.Amount(r.TotalClosing))
	return tw.Flush()
}
