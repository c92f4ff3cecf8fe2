package accountinghttp

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/shared"
)

type createAccountRequest struct {
	Code       string `json:"code" validate:"required,max=32"`
	Name       string `json:"name" validate:"required,max=255"`
	Type       string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentCode string `json:"parent_code" validate:"omitempty,max=32"`
	IsHeader   bool   `json:"is_header"`
	SystemOnly bool   `json:"system_only"`
}

func (req createAccountRequest) input(orgID int64, actor shared.Actor) accounts.CreateInput {
	return accounts.CreateInput{
		OrgID:      orgID,
		Code:       req.Code,
		Name:       req.Name,
		Type:       accounting.AccountType(req.Type),
		ParentCode: req.ParentCode,
		IsHeader:   req.IsHeader,
		SystemOnly: req.SystemOnly,
		Actor:      actor,
	}
}

type updateAccountRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	ParentCode *string `json:"parent_code" validate:"omitempty,max=32"`
}

type createPeriodRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (req createPeriodRequest) input(orgID int64, actor shared.Actor) (periods.CreateInput, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return periods.CreateInput{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return periods.CreateInput{}, err
	}
	return periods.CreateInput{OrgID: orgID, Name: req.Name, StartDate: start, EndDate: end, Actor: actor}, nil
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=255"`
}

type entryRequest struct {
	EntryDate    string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Memo         string        `json:"memo" validate:"max=500"`
	SourceModule string        `json:"source_module" validate:"omitempty,max=64"`
	SourceRef    string        `json:"source_ref" validate:"omitempty,max=128"`
	Lines        []lineRequest `json:"lines" validate:"dive"`
	// Post creates and posts in one step.
	Post bool `json:"post"`
}

func (req entryRequest) input(orgID int64, actor shared.Actor) (journals.EntryInput, error) {
	date, err := parseDate("entry_date", req.EntryDate)
	if err != nil {
		return journals.EntryInput{}, err
	}
	lines := make([]journals.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, journals.LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	return journals.EntryInput{
		OrgID:        orgID,
		EntryDate:    date,
		Memo:         req.Memo,
		SourceModule: req.SourceModule,
		SourceRef:    req.SourceRef,
		Lines:        lines,
		Actor:        actor,
	}, nil
}

type voidRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type balanceResponse struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}
