package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryCounterStore struct {
	counters map[int64]int64
	latest   map[int64]string
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counters: make(map[int64]int64), latest: make(map[int64]string)}
}

func (m *memoryCounterStore) LockInvoiceCounter(ctx context.Context, ownerID int64) (int64, bool, error) {
	next, ok := m.counters[ownerID]
	return next, ok, nil
}

func (m *memoryCounterStore) SaveInvoiceCounter(ctx context.Context, ownerID, next int64) error {
	m.counters[ownerID] = next
	return nil
}

func (m *memoryCounterStore) LatestInvoiceNumber(ctx context.Context, ownerID int64, prefix string) (string, bool, error) {
	latest, ok := m.latest[ownerID]
	return latest, ok, nil
}

func TestAllocateNumberStartsFresh(t *testing.T) {
	store := newMemoryCounterStore()
	number, err := AllocateNumber(context.Background(), store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	require.Equal(t, "SHA-INV-1001", number)
	require.Equal(t, int64(1002), store.counters[7])
}

func TestAllocateNumberSequential(t *testing.T) {
	store := newMemoryCounterStore()
	ctx := context.Background()
	first, err := AllocateNumber(ctx, store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	second, err := AllocateNumber(ctx, store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	require.Equal(t, "SHA-INV-1001", first)
	require.Equal(t, "SHA-INV-1002", second)
}

func TestAllocateNumberSeedsFromLatestInvoice(t *testing.T) {
	store := newMemoryCounterStore()
	store.latest[7] = "SHA-INV-1042"
	number, err := AllocateNumber(context.Background(), store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	require.Equal(t, "SHA-INV-1043", number)
}

func TestAllocateNumberUnparsableLatestFallsBackToStart(t *testing.T) {
	store := newMemoryCounterStore()
	store.latest[7] = "SHA-INV-LEGACY"
	number, err := AllocateNumber(context.Background(), store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	require.Equal(t, "SHA-INV-1001", number)
}

func TestAllocateNumberPerTenantCounters(t *testing.T) {
	store := newMemoryCounterStore()
	ctx := context.Background()
	a, err := AllocateNumber(ctx, store, 7, "SHA", "INV", 1001)
	require.NoError(t, err)
	b, err := AllocateNumber(ctx, store, 9, "A1M", "INV", 1001)
	require.NoError(t, err)
	require.Equal(t, "SHA-INV-1001", a)
	require.Equal(t, "A1M-INV-1001", b)
}

func TestParseSequence(t *testing.T) {
	seq, ok := parseSequence("SHA-INV-1042")
	require.True(t, ok)
	require.Equal(t, int64(1042), seq)

	_, ok = parseSequence("SHA-INV-")
	require.False(t, ok)

	_, ok = parseSequence("NODASHES")
	require.False(t, ok)
}
