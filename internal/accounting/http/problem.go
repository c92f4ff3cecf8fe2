package accountinghttp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

var kindStatus = map[string]int{
	accounting.KindUnbalancedEntry:         http.StatusUnprocessableEntity,
	accounting.KindUnknownAccount:          http.StatusUnprocessableEntity,
	accounting.KindHeaderPosting:           http.StatusUnprocessableEntity,
	accounting.KindInvalidLine:             http.StatusUnprocessableEntity,
	accounting.KindInvalidParent:           http.StatusUnprocessableEntity,
	accounting.KindRetainedEarnings:        http.StatusUnprocessableEntity,
	accounting.KindNoOpenPeriod:            http.StatusConflict,
	accounting.KindOverlappingPeriod:       http.StatusConflict,
	accounting.KindPeriodClosed:            http.StatusConflict,
	accounting.KindInvalidStatusTransition: http.StatusConflict,
	accounting.KindDuplicateCode:           http.StatusConflict,
	accounting.KindHasChildren:             http.StatusConflict,
	accounting.KindHasPostedActivity:       http.StatusConflict,
	accounting.KindAccountInUse:            http.StatusConflict,
	accounting.KindPeriodAlreadyClosed:     http.StatusConflict,
	accounting.KindClosingInProgress:       http.StatusConflict,
	accounting.KindConflict:                http.StatusConflict,
	accounting.KindNotFound:                http.StatusNotFound,
	accounting.KindValidation:              http.StatusBadRequest,
}

// WriteError renders err as a problem document. Ledger errors carry their
// kind and the offending values; anything else is logged and hidden.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Status: http.StatusBadRequest,
			Title:  "Validation Failed",
			Kind:   accounting.KindValidation,
			Errors: fields,
		})
		return
	}
	kind := accounting.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		if logger != nil && !isTransportError(err) {
			logger.Error("ledger request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Status: status,
		Detail: err.Error(),
		Kind:   kind,
		Errors: errorFields(err),
	})
}

func isTransportError(err error) bool {
	return errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrNotFound)
}

// errorFields extracts the ids and amounts a client needs to fix the request.
func errorFields(err error) map[string]any {
	var (
		unbalanced  *accounting.UnbalancedEntryError
		unknown     *accounting.UnknownAccountError
		header      *accounting.HeaderPostingError
		noPeriod    *accounting.NoOpenPeriodError
		overlap     *accounting.OverlappingPeriodError
		closed      *accounting.PeriodClosedError
		transition  *accounting.InvalidStatusTransitionError
		duplicate   *accounting.DuplicateCodeError
		parent      *accounting.InvalidParentError
		children    *accounting.HasChildrenError
		activity    *accounting.HasPostedActivityError
		inUse       *accounting.AccountInUseError
		closedTwice *accounting.PeriodAlreadyClosedError
		line        *accounting.InvalidLineError
	)
	switch {
	case errors.As(err, &unbalanced):
		return map[string]any{"debit": unbalanced.Debit.StringFixed(2), "credit": unbalanced.Credit.StringFixed(2)}
	case errors.As(err, &unknown):
		return map[string]any{"account_id": unknown.AccountID, "line": unknown.Line, "inactive": unknown.Inactive}
	case errors.As(err, &header):
		return map[string]any{"account_id": header.AccountID, "code": header.Code, "line": header.Line}
	case errors.As(err, &noPeriod):
		return map[string]any{"date": noPeriod.Date.Format(time.DateOnly)}
	case errors.As(err, &overlap):
		return map[string]any{"existing_id": overlap.ExistingID, "existing_name": overlap.ExistingName}
	case errors.As(err, &closed):
		return map[string]any{"period_id": closed.PeriodID}
	case errors.As(err, &transition):
		return map[string]any{"entry_id": transition.EntryID, "from": transition.From, "to": transition.To}
	case errors.As(err, &duplicate):
		return map[string]any{"code": duplicate.Code}
	case errors.As(err, &parent):
		return map[string]any{"code": parent.Code, "parent_code": parent.ParentCode, "cycle": parent.Cycle}
	case errors.As(err, &children):
		return map[string]any{"account_id": children.AccountID, "code": children.Code}
	case errors.As(err, &activity):
		return map[string]any{"account_id": activity.AccountID, "code": activity.Code}
	case errors.As(err, &inUse):
		return map[string]any{"account_id": inUse.AccountID, "code": inUse.Code}
	case errors.As(err, &closedTwice):
		return map[string]any{"period_id": closedTwice.PeriodID}
	case errors.As(err, &line):
		return map[string]any{"line": line.Line, "reason": line.Reason}
	default:
		return nil
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", httpx.ErrValidation, fmt.Sprintf(format, args...))
}
