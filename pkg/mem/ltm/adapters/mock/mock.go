package mock

import (
	"context"
	"sync"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

// Operation names accepted by FailOn.
const (
	OpAdd    = "add"
	OpQuery  = "query"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpScan   = "scan"
	OpCount  = "count"
)

// MockStore is an in-memory implementation of ltm.VectorStore used for
// testing and development. Failures can be injected per operation.
type MockStore struct {
	records map[string]ltm.Record

	failures  map[string]error
	calls     map[string]int
	lastQuery []float32

	mutex sync.RWMutex
}

// NewMockStore creates a new instance of the MockStore.
func NewMockStore() *MockStore {
	log.Debug("Initialized mock memory store")
	return &MockStore{
		records:  make(map[string]ltm.Record),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *MockStore) FailOn(op string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked.
func (m *MockStore) Calls(op string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.calls[op]
}

// LastQueryEmbedding returns the embedding of the most recent Query.
func (m *MockStore) LastQueryEmbedding() []float32 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.lastQuery
}

// enter records the call and returns the injected failure, if any.
// It must be called with the write lock held.
func (m *MockStore) enter(op string) error {
	m.calls[op]++
	return m.failures[op]
}

// Add implements ltm.VectorStore.
func (m *MockStore) Add(ctx context.Context, record ltm.Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpAdd); err != nil {
		return err
	}
	m.records[record.ID] = clone(record)
	log.DebugContext(ctx, "Stored memory record in mock store", "record_id", record.ID)
	return nil
}

// Query implements ltm.VectorStore.
func (m *MockStore) Query(ctx context.Context, embedding []float32, k int, filter ltm.Filter) ([]ltm.Candidate, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpQuery); err != nil {
		return nil, err
	}
	m.lastQuery = append([]float32(nil), embedding...)
	if k <= 0 {
		return nil, nil
	}
	matches := m.matching(filter)
	// map iteration is random; start from a stable order
	ltm.SortNewestFirst(matches)
	return ltm.NearestByCosine(matches, embedding, k), nil
}

// Get implements ltm.VectorStore.
func (m *MockStore) Get(ctx context.Context, ids ...string) ([]ltm.Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpGet); err != nil {
		return nil, err
	}
	var out []ltm.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// Update implements ltm.VectorStore.
func (m *MockStore) Update(ctx context.Context, record ltm.Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpUpdate); err != nil {
		return err
	}
	if _, ok := m.records[record.ID]; !ok {
		return ltm.ErrRecordNotFound
	}
	m.records[record.ID] = clone(record)
	return nil
}

// Delete implements ltm.VectorStore.
func (m *MockStore) Delete(ctx context.Context, ids ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpDelete); err != nil {
		return err
	}
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Scan implements ltm.VectorStore. A limit <= 0 means all.
func (m *MockStore) Scan(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpScan); err != nil {
		return nil, err
	}
	out := m.matching(filter)
	ltm.SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count implements ltm.VectorStore.
func (m *MockStore) Count(ctx context.Context) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.enter(OpCount); err != nil {
		return 0, err
	}
	return len(m.records), nil
}

// Close implements ltm.VectorStore.
func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) matching(filter ltm.Filter) []ltm.Record {
	var out []ltm.Record
	for _, r := range m.records {
		if filter.Matches(r.Metadata.Flatten()) {
			out = append(out, clone(r))
		}
	}
	return out
}

func clone(r ltm.Record) ltm.Record {
	r.Embedding = append([]float32(nil), r.Embedding...)
	if r.Metadata.Extra != nil {
		extra := make(map[string]string, len(r.Metadata.Extra))
		for k, v := range r.Metadata.Extra {
			extra[k] = v
		}
		r.Metadata.Extra = extra
	}
	return r
}
