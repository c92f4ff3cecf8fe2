// Package close runs the fiscal year close: temporary accounts are zeroed
// into retained earnings and the period is locked against further posting.
package close

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/platform/lock"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// DefaultLockTTL bounds how long a crashed close can hold the period lock.
const DefaultLockTTL = 2 * time.Minute

// Service orchestrates fiscal year closing.
type Service struct {
	store        accounting.Store
	engine       *journals.Engine
	periods      *periods.Manager
	locker       lock.Locker
	audit        shared.AuditPort
	logger       *slog.Logger
	observer     accounting.Observer
	retainedCode string
	lockTTL      time.Duration
	now          func() time.Time
}

// NewService constructs a Service instance.
func NewService(store accounting.Store, engine *journals.Engine, periodManager *periods.Manager, locker lock.Locker, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		store:        store,
		engine:       engine,
		periods:      periodManager,
		locker:       locker,
		audit:        audit,
		logger:       logger,
		retainedCode: accounts.CodeRetainedEarnings,
		lockTTL:      DefaultLockTTL,
		now:          time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver registers an observer notified after a close commits.
func (s *Service) WithObserver(obs accounting.Observer) {
	s.observer = obs
}

// WithRetainedEarningsCode changes the equity account receiving net income.
func (s *Service) WithRetainedEarningsCode(code string) {
	if code != "" {
		s.retainedCode = code
	}
}

// WithLockTTL changes the period lock expiry.
func (s *Service) WithLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// CloseFiscalYear zeroes every revenue and expense balance of the period into
// retained earnings with one closing entry dated at the period end, then
// closes the period. Both happen in one transaction.
func (s *Service) CloseFiscalYear(ctx context.Context, in CloseInput) (CloseResult, error) {
	if err := in.Validate(); err != nil {
		return CloseResult{}, err
	}
	periodID, err := s.resolvePeriod(ctx, in)
	if err != nil {
		return CloseResult{}, err
	}

	release, err := s.locker.Acquire(ctx, shared.FinanceLockKey(in.OrgID, periodID), s.lockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		return CloseResult{}, accounting.ErrClosingInProgress
	}
	if err != nil {
		return CloseResult{}, fmt.Errorf("close: acquire lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("close lock release", slog.Int64("period_id", periodID), slog.Any("error", err))
		}
	}()

	var result CloseResult
	err = s.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		period, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if period.OrgID != in.OrgID {
			return accounting.ErrPeriodNotFound
		}
		if period.Status == accounting.PeriodStatusClosed {
			return &accounting.PeriodAlreadyClosedError{PeriodID: period.ID}
		}
		rows, err := balances.BalancesTx(ctx, tx, accounting.BalanceFilter{
			OrgID: in.OrgID,
			From:  period.StartDate,
			To:    period.EndDate,
		})
		if err != nil {
			return err
		}
		pl := reports.BuildProfitAndLoss(reports.FromBalances(rows))
		result.NetIncome = pl.NetIncome

		lines := closingLines(rows)
		result.ClosedAccounts = len(lines)
		if len(lines) > 0 {
			retained, err := s.retainedEarnings(ctx, tx, in.OrgID)
			if err != nil {
				return err
			}
			lines = appendRetainedLine(lines, retained.ID, pl.NetIncome)
			entry, err := s.engine.PostSystemEntry(ctx, tx, journals.EntryInput{
				OrgID:        in.OrgID,
				EntryDate:    period.EndDate,
				Memo:         "Closing entry " + period.Name,
				SourceModule: SourceModule,
				SourceRef:    strconv.FormatInt(period.ID, 10),
				Lines:        lines,
				Actor:        in.Actor,
			})
			if err != nil {
				return fmt.Errorf("close: closing entry: %w", err)
			}
			result.Entry = &entry
		}

		result.Period, err = s.periods.CloseTx(ctx, tx, period.ID, in.Actor)
		return err
	})
	if err != nil {
		return CloseResult{}, err
	}

	s.logger.Info("fiscal period closed",
		slog.Int64("org_id", in.OrgID),
		slog.Int64("period_id", result.Period.ID),
		slog.String("net_income", result.NetIncome.StringFixed(2)),
		slog.Int("closed_accounts", result.ClosedAccounts),
	)
	s.record(ctx, in.Actor, result)
	if s.observer != nil {
		s.observer.LedgerChanged(ctx, in.OrgID, accounting.EventPeriodClosed)
	}
	return result, nil
}

func (s *Service) resolvePeriod(ctx context.Context, in CloseInput) (int64, error) {
	if in.PeriodID != 0 {
		return in.PeriodID, nil
	}
	list, err := s.periods.List(ctx, in.OrgID)
	if err != nil {
		return 0, err
	}
	for _, p := range list {
		if p.Status == accounting.PeriodStatusOpen {
			return p.ID, nil
		}
	}
	return 0, &accounting.NoOpenPeriodError{OrgID: in.OrgID, Date: accounting.DateOnly(s.now())}
}

func (s *Service) retainedEarnings(ctx context.Context, tx accounting.Tx, orgID int64) (accounting.Account, error) {
	acc, err := tx.GetAccountByCode(ctx, orgID, s.retainedCode)
	if errors.Is(err, accounting.ErrAccountNotFound) {
		return accounting.Account{}, fmt.Errorf("%w: account %s not found", accounting.ErrRetainedEarningsMisconfigured, s.retainedCode)
	}
	if err != nil {
		return accounting.Account{}, err
	}
	if acc.Type != accounting.AccountTypeEquity || !acc.Postable() {
		return accounting.Account{}, fmt.Errorf("%w: account %s must be an active equity leaf", accounting.ErrRetainedEarningsMisconfigured, acc.Code)
	}
	return acc, nil
}

// closingLines zeroes every temporary account with a balance.
func closingLines(rows []balances.AccountBalance) []journals.LineInput {
	var lines []journals.LineInput
	for _, row := range rows {
		if !row.Account.Type.Temporary() {
			continue
		}
		bal := row.Balance()
		switch {
		case bal.IsPositive():
			lines = append(lines, journals.LineInput{AccountID: row.Account.ID, Credit: bal, Memo: "close " + row.Account.Code})
		case bal.IsNegative():
			lines = append(lines, journals.LineInput{AccountID: row.Account.ID, Debit: bal.Neg(), Memo: "close " + row.Account.Code})
		}
	}
	return lines
}

// appendRetainedLine credits profit or debits loss to retained earnings.
func appendRetainedLine(lines []journals.LineInput, accountID int64, netIncome decimal.Decimal) []journals.LineInput {
	switch {
	case netIncome.IsPositive():
		return append(lines, journals.LineInput{AccountID: accountID, Credit: netIncome, Memo: "net income"})
	case netIncome.IsNegative():
		return append(lines, journals.LineInput{AccountID: accountID, Debit: netIncome.Neg(), Memo: "net loss"})
	default:
		return lines
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, result CloseResult) {
	meta := map[string]any{
		"net_income":      result.NetIncome.StringFixed(2),
		"closed_accounts": result.ClosedAccounts,
	}
	if result.Entry != nil {
		meta["entry_number"] = result.Entry.EntryNumber
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		OrgID:     result.Period.OrgID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    "period.close_year",
		Entity:    "fiscal_period",
		EntityID:  strconv.FormatInt(result.Period.ID, 10),
		Meta:      meta,
		At:        s.now(),
	})
}
