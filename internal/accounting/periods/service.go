package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// CreateInput captures validation rules for new periods.
type CreateInput struct {
	OrgID     int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Actor     shared.Actor
}

// Validate ensures the create period input is coherent.
func (in CreateInput) Validate() error {
	if in.OrgID == 0 {
		return fmt.Errorf("%w: org id required", accounting.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: period name required", accounting.ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end date required", accounting.ErrValidation)
	}
	if accounting.DateOnly(in.StartDate).After(accounting.DateOnly(in.EndDate)) {
		return accounting.ErrInvalidPeriodRange
	}
	return nil
}

// Manager gates postings by fiscal period.
type Manager struct {
	store  accounting.Store
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs the period manager.
func NewManager(store accounting.Store, audit shared.AuditPort, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (m *Manager) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Create inserts a new open period after validating overlap.
func (m *Manager) Create(ctx context.Context, in CreateInput) (accounting.FiscalPeriod, error) {
	if err := in.Validate(); err != nil {
		return accounting.FiscalPeriod{}, err
	}
	start, end := accounting.DateOnly(in.StartDate), accounting.DateOnly(in.EndDate)
	var period accounting.FiscalPeriod
	err := m.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		existing, err := tx.FindOverlappingPeriod(ctx, in.OrgID, start, end)
		if err == nil {
			return &accounting.OverlappingPeriodError{ExistingID: existing.ID, ExistingName: existing.Name}
		}
		if !errors.Is(err, accounting.ErrPeriodNotFound) {
			return err
		}
		period, err = tx.InsertPeriod(ctx, accounting.FiscalPeriod{
			OrgID:     in.OrgID,
			Name:      strings.TrimSpace(in.Name),
			StartDate: start,
			EndDate:   end,
			Status:    accounting.PeriodStatusOpen,
		})
		return err
	})
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	m.record(ctx, in.Actor, "period.create", period, map[string]any{
		"start": period.StartDate.Format(time.DateOnly),
		"end":   period.EndDate.Format(time.DateOnly),
	})
	return period, nil
}

// OpenPeriodFor returns the open period containing date.
func (m *Manager) OpenPeriodFor(ctx context.Context, orgID int64, date time.Time) (accounting.FiscalPeriod, error) {
	var period accounting.FiscalPeriod
	err := m.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		period, err = ResolveOpen(ctx, rd, orgID, date)
		return err
	})
	return period, err
}

// ResolveOpen finds the open period containing date using r.
func ResolveOpen(ctx context.Context, r accounting.Reader, orgID int64, date time.Time) (accounting.FiscalPeriod, error) {
	period, err := r.FindOpenPeriod(ctx, orgID, accounting.DateOnly(date))
	if errors.Is(err, accounting.ErrPeriodNotFound) {
		return accounting.FiscalPeriod{}, &accounting.NoOpenPeriodError{OrgID: orgID, Date: accounting.DateOnly(date)}
	}
	return period, err
}

// Close transitions the period to closed. There is no way back.
func (m *Manager) Close(ctx context.Context, periodID int64, actor shared.Actor) (accounting.FiscalPeriod, error) {
	var period accounting.FiscalPeriod
	err := m.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		var err error
		period, err = m.CloseTx(ctx, tx, periodID, actor)
		return err
	})
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	m.record(ctx, actor, "period.close", period, nil)
	return period, nil
}

// CloseTx closes the period inside the caller's transaction. Callers own
// auditing.
func (m *Manager) CloseTx(ctx context.Context, tx accounting.Tx, periodID int64, actor shared.Actor) (accounting.FiscalPeriod, error) {
	period, err := tx.GetPeriodForUpdate(ctx, periodID)
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	if period.Status == accounting.PeriodStatusClosed {
		return accounting.FiscalPeriod{}, &accounting.PeriodAlreadyClosedError{PeriodID: period.ID}
	}
	at := m.now()
	if err := tx.ClosePeriod(ctx, period.ID, actor.ID, at); err != nil {
		return accounting.FiscalPeriod{}, err
	}
	period.Status = accounting.PeriodStatusClosed
	period.ClosedBy = actor.ID
	period.ClosedAt = &at
	return period, nil
}

// Get returns a single period.
func (m *Manager) Get(ctx context.Context, id int64) (accounting.FiscalPeriod, error) {
	var period accounting.FiscalPeriod
	err := m.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		period, err = rd.GetPeriod(ctx, id)
		return err
	})
	return period, err
}

// List returns the organisation's periods ordered by start date.
func (m *Manager) List(ctx context.Context, orgID int64) ([]accounting.FiscalPeriod, error) {
	var out []accounting.FiscalPeriod
	err := m.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		out, err = rd.ListPeriods(ctx, orgID)
		return err
	})
	return out, err
}

func (m *Manager) record(ctx context.Context, actor shared.Actor, action string, period accounting.FiscalPeriod, meta map[string]any) {
	shared.RecordBestEffort(ctx, m.audit, m.logger, shared.AuditLog{
		OrgID:     period.OrgID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Entity:    "fiscal_period",
		EntityID:  strconv.FormatInt(period.ID, 10),
		Meta:      meta,
		At:        m.now(),
	})
}
