package engine

import (
	"context"
	"sync"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/datastore"
)

// mockStore is an in-memory LocalStore for engine tests.
type mockStore struct {
	mu         sync.Mutex
	records    map[string]datastore.Record
	outbox     []Change
	nextSeq    int64
	checkpoint cursor.Cursor
	lastBase   time.Time
	closed     bool

	applyErr      error
	pendingErr    error
	ackErr        error
	enqueueErr    error
	checkpointErr error

	applyCalls [][]datastore.Record
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]datastore.Record)}
}

func (m *mockStore) ApplyRemote(ctx context.Context, records []datastore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applyCalls = append(m.applyCalls, records)
	for _, r := range records {
		m.records[r.ID()] = r
	}
	return nil
}

func (m *mockStore) Pending(ctx context.Context, limit int) ([]Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	if limit > len(m.outbox) {
		limit = len(m.outbox)
	}
	out := make([]Change, limit)
	copy(out, m.outbox[:limit])
	return out, nil
}

func (m *mockStore) Ack(ctx context.Context, seqs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	acked := make(map[int64]bool, len(seqs))
	for _, seq := range seqs {
		acked[seq] = true
	}
	remaining := m.outbox[:0]
	for _, ch := range m.outbox {
		if !acked[ch.Seq] {
			remaining = append(remaining, ch)
		}
	}
	m.outbox = remaining
	return nil
}

func (m *mockStore) Enqueue(ctx context.Context, change Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.nextSeq++
	change.Seq = m.nextSeq
	m.outbox = append(m.outbox, change)
	return nil
}

// seed queues changes directly, assigning outbox seqs the way Enqueue does.
func (m *mockStore) seed(changes ...Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range changes {
		m.nextSeq++
		ch.Seq = m.nextSeq
		m.outbox = append(m.outbox, ch)
	}
}

func (m *mockStore) Checkpoint(ctx context.Context) (cursor.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpointErr != nil {
		return nil, m.checkpointErr
	}
	return m.checkpoint, nil
}

func (m *mockStore) SaveCheckpoint(ctx context.Context, c cursor.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoint = c
	return nil
}

func (m *mockStore) LastBaseSync(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBase, nil
}

func (m *mockStore) MarkBaseSync(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBase = at
	return nil
}

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStore) record(id string) (datastore.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *mockStore) outboxSnapshot() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Change, len(m.outbox))
	copy(out, m.outbox)
	return out
}

// mockRemote is a scripted RemoteClient for engine tests.
type mockRemote struct {
	mu sync.Mutex

	pushFn func(changes []Change) (*PushResult, error)
	pullFn func(since cursor.Cursor, limit int) (*Page, error)

	pushCalls  int
	pullCalls  int
	pullSince  []cursor.Cursor
	pullLimits []int
	closed     bool
}

func (m *mockRemote) Push(ctx context.Context, changes []Change) (*PushResult, error) {
	m.mu.Lock()
	m.pushCalls++
	fn := m.pushFn
	m.mu.Unlock()
	if fn == nil {
		return &PushResult{}, nil
	}
	return fn(changes)
}

func (m *mockRemote) Pull(ctx context.Context, since cursor.Cursor, limit int) (*Page, error) {
	m.mu.Lock()
	m.pullCalls++
	m.pullSince = append(m.pullSince, since)
	m.pullLimits = append(m.pullLimits, limit)
	fn := m.pullFn
	m.mu.Unlock()
	if fn == nil {
		return &Page{}, nil
	}
	return fn(since, limit)
}

func (m *mockRemote) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// acceptAll scripts a push that accepts every change.
func acceptAll(changes []Change) (*PushResult, error) {
	pr := &PushResult{}
	for _, ch := range changes {
		pr.Accepted = append(pr.Accepted, ch.Record.ID())
	}
	return pr, nil
}

// errorRecorder is a concurrency-safe ErrorHandler for tests.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// eventually polls cond until it is true or the deadline passes.
func eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
