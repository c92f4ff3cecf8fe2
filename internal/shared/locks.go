package shared

import "fmt"

// FinanceLockKey builds redis keys for finance critical sections.
func FinanceLockKey(orgID, periodID int64) string {
	return fmt.Sprintf("finance:org:%d:period:%d:lock", orgID, periodID)
}
