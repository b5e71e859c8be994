package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CounterStore is the slice of the transaction the allocator needs. The
// counter row is locked for the whole allocation, serialising concurrent
// creates within a tenant.
type CounterStore interface {
	LockInvoiceCounter(ctx context.Context, ownerID int64) (next int64, found bool, err error)
	SaveInvoiceCounter(ctx context.Context, ownerID, next int64) error
	LatestInvoiceNumber(ctx context.Context, ownerID int64, prefix string) (string, bool, error)
}

// AllocateNumber reserves the next invoice number for a tenant inside the
// caller's transaction. The format is {code}-{prefix}-{seq}. A missing
// counter row is seeded from the latest stored invoice number; when its
// trailing segment does not parse the sequence restarts at start.
func AllocateNumber(ctx context.Context, tx CounterStore, ownerID int64, code, prefix string, start int64) (string, error) {
	if start <= 0 {
		start = 1
	}
	full := fmt.Sprintf("%s-%s-", code, prefix)

	seq, found, err := tx.LockInvoiceCounter(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if !found {
		seq = start
		latest, ok, err := tx.LatestInvoiceNumber(ctx, ownerID, full)
		if err != nil {
			return "", err
		}
		if ok {
			if last, ok := parseSequence(latest); ok {
				seq = last + 1
			}
		}
	}

	if err := tx.SaveInvoiceCounter(ctx, ownerID, seq+1); err != nil {
		return "", err
	}
	return full + strconv.FormatInt(seq, 10), nil
}

// parseSequence extracts the trailing numeric segment of an invoice number.
func parseSequence(number string) (int64, bool) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	seq, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
