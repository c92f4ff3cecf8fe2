package accounting

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft    JournalStatus = "DRAFT"
	JournalStatusApproved JournalStatus = "APPROVED"
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusVoid     JournalStatus = "VOID"
)

// allowedFrom maps a target status to the statuses it may be entered from.
var allowedFrom = map[JournalStatus][]JournalStatus{
	JournalStatusApproved: {JournalStatusDraft},
	JournalStatusPosted:   {JournalStatusDraft, JournalStatusApproved},
	JournalStatusVoid:     {JournalStatusPosted},
}

// Valid reports whether s is a known status.
func (s JournalStatus) Valid() bool {
	switch s {
	case JournalStatusDraft, JournalStatusApproved, JournalStatusPosted, JournalStatusVoid:
		return true
	default:
		return false
	}
}

// Editable reports whether lines and header of an entry in status s may change.
func (s JournalStatus) Editable() bool {
	return s == JournalStatusDraft || s == JournalStatusApproved
}

// Posted reports whether the entry has been posted to the ledger. Voided
// entries keep their posted lines; the linked reversal offsets them.
func (s JournalStatus) Posted() bool {
	return s == JournalStatusPosted || s == JournalStatusVoid
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to JournalStatus) bool {
	for _, src := range allowedFrom[to] {
		if src == from {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidStatusTransitionError when from -> to is
// not allowed for the entry.
func CheckTransition(entryID int64, from, to JournalStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &InvalidStatusTransitionError{EntryID: entryID, From: from, To: to}
}
