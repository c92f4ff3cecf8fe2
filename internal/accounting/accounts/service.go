package accounts

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

// CreateInput describes a new chart of accounts node.
type CreateInput struct {
	OrgID      int64
	Code       string
	Name       string
	Type       accounting.AccountType
	ParentCode string
	IsHeader   bool
	// SystemOnly hides the account from manual entry pickers.
	SystemOnly bool
	Actor      shared.Actor
}

// Validate ensures the input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.OrgID == 0 {
		return fmt.Errorf("%w: org id required", accounting.ErrValidation)
	}
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: account code required", accounting.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: account name required", accounting.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", accounting.ErrValidation, in.Type)
	}
	if in.ParentCode == in.Code {
		return &accounting.InvalidParentError{Code: in.Code, ParentCode: in.ParentCode, Cycle: true}
	}
	return nil
}

// Registry owns the chart of accounts.
type Registry struct {
	store    accounting.Store
	audit    shared.AuditPort
	logger   *slog.Logger
	observer accounting.Observer
	now      func() time.Time
}

// NewRegistry constructs the account registry.
func NewRegistry(store accounting.Store, audit shared.AuditPort, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// WithObserver registers an observer for committed changes to existing
// accounts.
func (r *Registry) WithObserver(obs accounting.Observer) {
	r.observer = obs
}

// Create adds an account, resolving its parent and level.
func (r *Registry) Create(ctx context.Context, in CreateInput) (accounting.Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.ParentCode = strings.TrimSpace(in.ParentCode)
	if err := in.Validate(); err != nil {
		return accounting.Account{}, err
	}
	var created accounting.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		var err error
		created, err = createAccount(ctx, tx, in)
		return err
	})
	if err != nil {
		return accounting.Account{}, err
	}
	r.record(ctx, in.Actor, "account.create", created, map[string]any{
		"code": created.Code,
		"type": string(created.Type),
	})
	return created, nil
}

func createAccount(ctx context.Context, tx accounting.Tx, in CreateInput) (accounting.Account, error) {
	if _, err := tx.GetAccountByCode(ctx, in.OrgID, in.Code); err == nil {
		return accounting.Account{}, &accounting.DuplicateCodeError{Code: in.Code}
	} else if !errors.Is(err, accounting.ErrAccountNotFound) {
		return accounting.Account{}, err
	}
	level := 0
	if in.ParentCode != "" {
		depth, err := resolveParentDepth(ctx, tx, in.OrgID, in.Code, in.ParentCode)
		if err != nil {
			return accounting.Account{}, err
		}
		level = depth + 1
	}
	return tx.InsertAccount(ctx, accounting.Account{
		OrgID:            in.OrgID,
		Code:             in.Code,
		Name:             strings.TrimSpace(in.Name),
		Type:             in.Type,
		ParentCode:       in.ParentCode,
		Level:            level,
		IsHeader:         in.IsHeader,
		AllowManualEntry: !in.SystemOnly,
		IsActive:         true,
	})
}

// resolveParentDepth walks from parentCode to the root and returns the
// parent's level. It fails when a code repeats on the way up or equals code.
func resolveParentDepth(ctx context.Context, r accounting.Reader, orgID int64, code, parentCode string) (int, error) {
	visited := map[string]struct{}{code: {}}
	current := parentCode
	depth := -1
	for current != "" {
		if _, seen := visited[current]; seen {
			return 0, &accounting.InvalidParentError{Code: code, ParentCode: parentCode, Cycle: true}
		}
		visited[current] = struct{}{}
		acc, err := r.GetAccountByCode(ctx, orgID, current)
		if err != nil {
			if errors.Is(err, accounting.ErrAccountNotFound) {
				return 0, &accounting.InvalidParentError{Code: code, ParentCode: parentCode}
			}
			return 0, err
		}
		depth++
		current = acc.ParentCode
	}
	return depth, nil
}

// Move re-parents an account. An empty parentCode makes it a root. Levels of
// the whole subtree are recomputed.
func (r *Registry) Move(ctx context.Context, id int64, parentCode string, actor shared.Actor) (accounting.Account, error) {
	parentCode = strings.TrimSpace(parentCode)
	var moved accounting.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		level := 0
		if parentCode != "" {
			depth, err := resolveParentDepth(ctx, tx, acc.OrgID, acc.Code, parentCode)
			if err != nil {
				return err
			}
			level = depth + 1
		}
		acc.ParentCode = parentCode
		acc.Level = level
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		if err := relevelChildren(ctx, tx, acc); err != nil {
			return err
		}
		moved = acc
		return nil
	})
	if err != nil {
		return accounting.Account{}, err
	}
	r.record(ctx, actor, "account.move", moved, map[string]any{"parent_code": parentCode})
	r.notify(ctx, moved.OrgID)
	return moved, nil
}

func relevelChildren(ctx context.Context, tx accounting.Tx, parent accounting.Account) error {
	all, err := tx.ListAccounts(ctx, accounting.AccountFilter{OrgID: parent.OrgID})
	if err != nil {
		return err
	}
	children := make(map[string][]accounting.Account)
	for _, acc := range all {
		if acc.ParentCode != "" {
			children[acc.ParentCode] = append(children[acc.ParentCode], acc)
		}
	}
	queue := []accounting.Account{parent}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range children[node.Code] {
			child.Level = node.Level + 1
			if err := tx.UpdateAccount(ctx, child); err != nil {
				return err
			}
			queue = append(queue, child)
		}
	}
	return nil
}

// Get loads an account by identifier.
func (r *Registry) Get(ctx context.Context, id int64) (accounting.Account, error) {
	var acc accounting.Account
	err := r.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		acc, err = rd.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// FindByCode loads an account by its organisation-scoped code.
func (r *Registry) FindByCode(ctx context.Context, orgID int64, code string) (accounting.Account, error) {
	var acc accounting.Account
	err := r.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		acc, err = rd.GetAccountByCode(ctx, orgID, code)
		return err
	})
	return acc, err
}

// List returns the chart of accounts ordered by code.
func (r *Registry) List(ctx context.Context, orgID int64) ([]accounting.Account, error) {
	return r.list(ctx, accounting.AccountFilter{OrgID: orgID})
}

// ListByType returns accounts of one category.
func (r *Registry) ListByType(ctx context.Context, orgID int64, typ accounting.AccountType) ([]accounting.Account, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", accounting.ErrValidation, typ)
	}
	return r.list(ctx, accounting.AccountFilter{OrgID: orgID, Type: typ})
}

// ListPostable returns active non-header accounts open to manual entry.
func (r *Registry) ListPostable(ctx context.Context, orgID int64) ([]accounting.Account, error) {
	return r.list(ctx, accounting.AccountFilter{OrgID: orgID, PostableOnly: true})
}

func (r *Registry) list(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	var out []accounting.Account
	err := r.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		out, err = rd.ListAccounts(ctx, filter)
		return err
	})
	return out, err
}

// Rename changes the display name.
func (r *Registry) Rename(ctx context.Context, id int64, name string, actor shared.Actor) (accounting.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return accounting.Account{}, fmt.Errorf("%w: account name required", accounting.ErrValidation)
	}
	acc, err := r.update(ctx, id, func(acc *accounting.Account) { acc.Name = name })
	if err != nil {
		return accounting.Account{}, err
	}
	r.record(ctx, actor, "account.rename", acc, map[string]any{"name": name})
	r.notify(ctx, acc.OrgID)
	return acc, nil
}

// Deactivate hides the account from new postings while keeping history.
func (r *Registry) Deactivate(ctx context.Context, id int64, actor shared.Actor) (accounting.Account, error) {
	acc, err := r.update(ctx, id, func(acc *accounting.Account) { acc.IsActive = false })
	if err != nil {
		return accounting.Account{}, err
	}
	r.record(ctx, actor, "account.deactivate", acc, nil)
	r.notify(ctx, acc.OrgID)
	return acc, nil
}

func (r *Registry) update(ctx context.Context, id int64, mutate func(*accounting.Account)) (accounting.Account, error) {
	var out accounting.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		mutate(&acc)
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		out = acc
		return nil
	})
	return out, err
}

// Delete removes an account that has no children and that no journal line
// references.
func (r *Registry) Delete(ctx context.Context, id int64, actor shared.Actor) error {
	var deleted accounting.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		hasChildren, err := tx.HasChildAccounts(ctx, acc.OrgID, acc.Code)
		if err != nil {
			return err
		}
		if hasChildren {
			return &accounting.HasChildrenError{AccountID: acc.ID, Code: acc.Code}
		}
		posted, err := tx.HasPostedLines(ctx, acc.ID)
		if err != nil {
			return err
		}
		if posted {
			return &accounting.HasPostedActivityError{AccountID: acc.ID, Code: acc.Code}
		}
		pending, err := tx.HasPendingLines(ctx, acc.ID)
		if err != nil {
			return err
		}
		if pending {
			return &accounting.AccountInUseError{AccountID: acc.ID, Code: acc.Code}
		}
		deleted = acc
		return tx.DeleteAccount(ctx, acc.ID)
	})
	if err != nil {
		return err
	}
	r.record(ctx, actor, "account.delete", deleted, map[string]any{"code": deleted.Code})
	r.notify(ctx, deleted.OrgID)
	return nil
}

// SeedDefaultChart installs DefaultChart for the organisation, skipping codes
// that already exist. It returns the accounts it created.
func (r *Registry) SeedDefaultChart(ctx context.Context, orgID int64, actor shared.Actor) ([]accounting.Account, error) {
	var created []accounting.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		for _, def := range DefaultChart {
			def.OrgID = orgID
			def.Actor = actor
			acc, err := createAccount(ctx, tx, def)
			if errors.Is(err, accounting.ErrDuplicateCode) {
				continue
			}
			if err != nil {
				return fmt.Errorf("seed %s: %w", def.Code, err)
			}
			created = append(created, acc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("chart of accounts seeded", slog.Int64("org_id", orgID), slog.Int("created", len(created)))
	return created, nil
}

func (r *Registry) notify(ctx context.Context, orgID int64) {
	if r.observer != nil {
		r.observer.LedgerChanged(ctx, orgID, accounting.EventAccountChanged)
	}
}

func (r *Registry) record(ctx context.Context, actor shared.Actor, action string, acc accounting.Account, meta map[string]any) {
	shared.RecordBestEffort(ctx, r.audit, r.logger, shared.AuditLog{
		OrgID:     acc.OrgID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Entity:    "account",
		EntityID:  strconv.FormatInt(acc.ID, 10),
		Meta:      meta,
		At:        r.now(),
	})
}
