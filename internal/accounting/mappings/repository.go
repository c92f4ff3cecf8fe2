package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// AccountLookup resolves account codes within an organisation.
type AccountLookup interface {
	FindByCode(ctx context.Context, orgID int64, code string) (accounting.Account, error)
}

// Resolver maps integration keys to accounts. Organisation overrides are
// persisted in the ledger store and take precedence over the defaults.
type Resolver struct {
	store  accounting.Store
	lookup AccountLookup
}

// NewResolver constructs a Resolver reading overrides from store.
func NewResolver(store accounting.Store, lookup AccountLookup) *Resolver {
	return &Resolver{store: store, lookup: lookup}
}

// Override routes module/key to code for one organisation.
func (r *Resolver) Override(ctx context.Context, orgID int64, module, key, code string, actor shared.Actor) (AccountMapping, error) {
	module = normalize(module)
	if _, ok := defaults[module][key]; !ok {
		return AccountMapping{}, fmt.Errorf("%w: %s/%s", accounting.ErrMappingNotFound, module, key)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return AccountMapping{}, fmt.Errorf("%w: account code required", accounting.ErrValidation)
	}
	var saved accounting.AccountMapping
	err := r.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		var err error
		saved, err = tx.UpsertMapping(ctx, accounting.AccountMapping{
			OrgID:       orgID,
			Module:      module,
			Key:         key,
			AccountCode: code,
			UpdatedBy:   actor.ID,
		})
		return err
	})
	if err != nil {
		return AccountMapping{}, err
	}
	return AccountMapping{Module: saved.Module, Key: saved.Key, AccountCode: saved.AccountCode}, nil
}

// Get returns the mapping in effect for the organisation.
func (r *Resolver) Get(ctx context.Context, orgID int64, module, key string) (AccountMapping, error) {
	module = normalize(module)
	if module == "" || key == "" {
		return AccountMapping{}, fmt.Errorf("%w: module and key required", accounting.ErrValidation)
	}
	var override accounting.AccountMapping
	err := r.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		override, err = rd.GetMapping(ctx, orgID, module, key)
		return err
	})
	switch {
	case err == nil:
		return AccountMapping{Module: module, Key: key, AccountCode: override.AccountCode}, nil
	case !errors.Is(err, accounting.ErrMappingNotFound):
		return AccountMapping{}, err
	}
	code, ok := defaults[module][key]
	if !ok {
		return AccountMapping{}, fmt.Errorf("%w: %s/%s", accounting.ErrMappingNotFound, module, key)
	}
	return AccountMapping{Module: module, Key: key, AccountCode: code, Default: true}, nil
}

// Resolve returns the account id mapped to module/key.
func (r *Resolver) Resolve(ctx context.Context, orgID int64, module, key string) (int64, error) {
	mapping, err := r.Get(ctx, orgID, module, key)
	if err != nil {
		return 0, err
	}
	acc, err := r.lookup.FindByCode(ctx, orgID, mapping.AccountCode)
	if err != nil {
		return 0, fmt.Errorf("mapping %s/%s: %w", module, key, err)
	}
	return acc.ID, nil
}
