package shared

import "fmt"

// StockSyncLockKey builds the redis key guarding a tenant's stock
// reconciliation run. The scheduled job and the admin endpoint share it so
// two reconciliations never interleave.
func StockSyncLockKey(ownerID int64) string {
	return fmt.Sprintf("inventory:sync:%d:lock", ownerID)
}
