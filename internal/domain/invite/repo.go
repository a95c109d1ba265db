package invite

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Repository is the delivery ledger.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByCall(ctx context.Context, callID string, limit, offset int) ([]Record, int, error)
	ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]Record, int, error)
}

// memoryRepo keeps the ledger in memory. Used when the service runs without
// a database.
type memoryRepo struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryRepo creates an empty in-memory ledger.
func NewMemoryRepo() Repository {
	return &memoryRepo{}
}

func (m *memoryRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.records = append(m.records, *r)
	return nil
}

func (m *memoryRepo) ListByCall(_ context.Context, callID string, limit, offset int) ([]Record, int, error) {
	return m.list(func(r Record) bool { return r.CallID == callID }, limit, offset)
}

func (m *memoryRepo) ListByRecipient(_ context.Context, recipient string, limit, offset int) ([]Record, int, error) {
	return m.list(func(r Record) bool { return r.Recipient == recipient }, limit, offset)
}

func (m *memoryRepo) list(match func(Record) bool, limit, offset int) ([]Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Record
	for _, r := range m.records {
		if match(r) {
			all = append(all, r)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return []Record{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}
