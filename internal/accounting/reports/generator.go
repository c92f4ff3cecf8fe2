package reports

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
)

// IncomeStatement is the profit and loss report over a date window.
type IncomeStatement struct {
	OrgID    int64     `json:"org_id"`
	PeriodID int64     `json:"period_id,omitempty"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	ProfitAndLoss
}

// BalanceSheetReport is the balance sheet as of a date.
type BalanceSheetReport struct {
	OrgID int64     `json:"org_id"`
	AsOf  time.Time `json:"as_of"`
	BalanceSheet
}

// PeriodTrialBalance is the grouped trial balance worksheet for a period.
type PeriodTrialBalance struct {
	OrgID    int64  `json:"org_id"`
	PeriodID int64  `json:"period_id"`
	Period   string `json:"period"`
	TrialBalance
}

// Generator builds financial statements from posted balances.
type Generator struct {
	store  accounting.Store
	cache  *Cache
	logger *slog.Logger
}

// NewGenerator constructs a Generator. cache may be nil.
func NewGenerator(store accounting.Store, cache *Cache, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, cache: cache, logger: logger}
}

// IncomeStatement reports revenue, expense and net income for a period.
func (g *Generator) IncomeStatement(ctx context.Context, orgID, periodID int64) (IncomeStatement, error) {
	period, err := g.period(ctx, orgID, periodID)
	if err != nil {
		return IncomeStatement{}, err
	}
	report, err := g.IncomeStatementRange(ctx, orgID, period.StartDate, period.EndDate)
	if err != nil {
		return IncomeStatement{}, err
	}
	report.PeriodID = period.ID
	return report, nil
}

// IncomeStatementRange reports over an explicit inclusive date window.
func (g *Generator) IncomeStatementRange(ctx context.Context, orgID int64, from, to time.Time) (IncomeStatement, error) {
	from, to = accounting.DateOnly(from), accounting.DateOnly(to)
	if from.After(to) {
		return IncomeStatement{}, accounting.ErrInvalidPeriodRange
	}
	var out IncomeStatement
	err := g.cached(ctx, orgID, &out, func(ctx context.Context) (any, error) {
		rows, err := g.balances(ctx, accounting.BalanceFilter{OrgID: orgID, From: from, To: to, ExcludeSystem: true})
		if err != nil {
			return nil, err
		}
		return IncomeStatement{OrgID: orgID, From: from, To: to, ProfitAndLoss: BuildProfitAndLoss(rows)}, nil
	}, "pl", from.Format(time.DateOnly), to.Format(time.DateOnly))
	return out, err
}

// BalanceSheet reports positions as of asOf inclusive.
func (g *Generator) BalanceSheet(ctx context.Context, orgID int64, asOf time.Time) (BalanceSheetReport, error) {
	asOf = accounting.DateOnly(asOf)
	var out BalanceSheetReport
	err := g.cached(ctx, orgID, &out, func(ctx context.Context) (any, error) {
		rows, err := g.balances(ctx, accounting.BalanceFilter{OrgID: orgID, To: asOf})
		if err != nil {
			return nil, err
		}
		return BalanceSheetReport{OrgID: orgID, AsOf: asOf, BalanceSheet: BuildBalanceSheet(rows)}, nil
	}, "bs", asOf.Format(time.DateOnly))
	return out, err
}

// TrialBalance builds the grouped worksheet for a period: opening balances
// before the period start plus movements inside it.
func (g *Generator) TrialBalance(ctx context.Context, orgID, periodID int64) (PeriodTrialBalance, error) {
	period, err := g.period(ctx, orgID, periodID)
	if err != nil {
		return PeriodTrialBalance{}, err
	}
	var out PeriodTrialBalance
	err = g.cached(ctx, orgID, &out, func(ctx context.Context) (any, error) {
		var opening, movement []AccountBalance
		grp, gctx := errgroup.WithContext(ctx)
		grp.Go(func() error {
			var err error
			opening, err = g.balances(gctx, accounting.BalanceFilter{OrgID: orgID, To: period.StartDate.AddDate(0, 0, -1)})
			return err
		})
		grp.Go(func() error {
			var err error
			movement, err = g.balances(gctx, accounting.BalanceFilter{OrgID: orgID, From: period.StartDate, To: period.EndDate})
			return err
		})
		if err := grp.Wait(); err != nil {
			return nil, err
		}
		return PeriodTrialBalance{
			OrgID:        orgID,
			PeriodID:     period.ID,
			Period:       period.Name,
			TrialBalance: BuildTrialBalance(mergeOpening(opening, movement)),
		}, nil
	}, "tb", strconv.FormatInt(period.ID, 10))
	return out, err
}

func (g *Generator) period(ctx context.Context, orgID, periodID int64) (accounting.FiscalPeriod, error) {
	var period accounting.FiscalPeriod
	err := g.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		period, err = rd.GetPeriod(ctx, periodID)
		return err
	})
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	if period.OrgID != orgID {
		return accounting.FiscalPeriod{}, accounting.ErrPeriodNotFound
	}
	return period, nil
}

func (g *Generator) balances(ctx context.Context, filter accounting.BalanceFilter) ([]AccountBalance, error) {
	var rows []balances.AccountBalance
	err := g.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		rows, err = balances.BalancesTx(ctx, rd, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromBalances(rows), nil
}

func (g *Generator) cached(ctx context.Context, orgID int64, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := g.cache.BuildKey(ctx, orgID, parts...)
	if err != nil {
		g.logger.Warn("report cache key", slog.Any("error", err))
		return roundTripLoad(ctx, dest, loader)
	}
	return g.cache.FetchJSON(ctx, key, dest, loader)
}

func roundTripLoad(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	return roundTrip(value, dest)
}

// FromBalances adapts calculator rows to report rows.
func FromBalances(rows []balances.AccountBalance) []AccountBalance {
	out := make([]AccountBalance, 0, len(rows))
	for _, r := range rows {
		out = append(out, AccountBalance{
			Code:    r.Account.Code,
			Name:    r.Account.Name,
			Type:    r.Account.Type,
			Opening: decimal.Zero,
			Debit:   r.Debit,
			Credit:  r.Credit,
		})
	}
	return out
}

// mergeOpening folds opening balances into movement rows. Accounts with an
// opening balance but no movement still appear.
func mergeOpening(opening, movement []AccountBalance) []AccountBalance {
	byCode := make(map[string]int, len(movement))
	out := make([]AccountBalance, 0, len(movement)+len(opening))
	for _, m := range movement {
		byCode[m.Code] = len(out)
		out = append(out, m)
	}
	for _, o := range opening {
		bal := o.Closing()
		if idx, ok := byCode[o.Code]; ok {
			out[idx].Opening = bal
			continue
		}
		if bal.IsZero() {
			continue
		}
		out = append(out, AccountBalance{Code: o.Code, Name: o.Name, Type: o.Type, Opening: bal, Debit: decimal.Zero, Credit: decimal.Zero})
	}
	return out
}
