package attendance

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	records []Record
	failErr error
}

func (m *memoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) ReadAll() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(TimestampLayout, value, time.Local)
	require.NoError(t, err)
	return ts
}

func TestLedger_AppendThenQueryCaseInsensitive(t *testing.T) {
	store, err := NewCSVStore(filepath.Join(t.TempDir(), "attendance.csv"))
	require.NoError(t, err)
	ledger := NewLedger(store)

	_, err = ledger.Append("Bob", mustTime(t, "2024-01-01T09:00:00"), 0.92)
	require.NoError(t, err)

	records, err := ledger.Query(Filter{Name: "bob"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0].Name)
	assert.Equal(t, "2024-01-01T09:00:00", records[0].FormattedTimestamp())
	assert.InDelta(t, 0.92, records[0].Confidence, 1e-9)
}

func TestLedger_QueryFilters(t *testing.T) {
	ledger := NewLedger(&memoryStore{})

	_, err := ledger.Append("Alice Smith", mustTime(t, "2024-01-01T08:00:00"), 0.8)
	require.NoError(t, err)
	_, err = ledger.Append("Bob", mustTime(t, "2024-01-01T09:00:00"), 0.9)
	require.NoError(t, err)
	_, err = ledger.Append("alice", mustTime(t, "2024-01-02T08:30:00"), 0.7)
	require.NoError(t, err)

	all, err := ledger.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alice Smith", "Bob", "alice"}, []string{all[0].Name, all[1].Name, all[2].Name})

	alices, err := ledger.Query(Filter{Name: "ALICE"})
	require.NoError(t, err)
	assert.Len(t, alices, 2)

	dayOne, err := ledger.Query(Filter{Date: "2024-01-01"})
	require.NoError(t, err)
	assert.Len(t, dayOne, 2)

	both, err := ledger.Query(Filter{Name: "alice", Date: "2024-01-02"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "alice", both[0].Name)
}

func TestLedger_AppendFailureIsLoud(t *testing.T) {
	ledger := NewLedger(&memoryStore{failErr: errors.New("disk full")})

	_, err := ledger.Append("Bob", time.Now(), 0.5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLedger_RejectsEmptyName(t *testing.T) {
	ledger := NewLedger(&memoryStore{})

	_, err := ledger.Append("  ", time.Now(), 0.5)
	assert.ErrorIs(t, err, ErrLedgerWrite)
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	store, err := NewCSVStore(filepath.Join(t.TempDir(), "attendance.csv"))
	require.NoError(t, err)
	ledger := NewLedger(store)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := ledger.Append(fmt.Sprintf("worker-%d", w), time.Now(), 0.5)
				assert.NoError(t, err)
			}
		}(w)
	}

	// readers run alongside the writers and must never see a torn row
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := ledger.Query(Filter{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	records, err := ledger.Query(Filter{})
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter)
}
