package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. Latency, when set, is waited out on every call
// so the asynchronous window of a write can be observed in tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
	Latency time.Duration
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Get(ctx context.Context, key string) (Record, bool, error) {
	if err := m.wait(ctx); err != nil {
		return Record{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Record{}, false, ErrClosed
	}
	rec, ok := m.records[key]
	return cloneRecord(rec), ok, nil
}

func (m *Memory) Range(ctx context.Context, lo, hi string) ([]Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []Record
	for key, rec := range m.records {
		if key >= lo && key < hi {
			out = append(out, cloneRecord(rec))
		}
	}
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return &memoryTx{m: m}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len reports the number of committed records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

type memoryOp struct {
	rec    Record
	update bool
}

type memoryTx struct {
	m    *Memory
	ops  []memoryOp
	done bool
}

// pending reports whether key was added earlier in this transaction.
func (tx *memoryTx) pending(key string) bool {
	return slices.ContainsFunc(tx.ops, func(op memoryOp) bool { return op.rec.Key == key })
}

func (tx *memoryTx) Add(ctx context.Context, rec Record) error {
	if tx.done {
		return ErrTxDone
	}
	if err := tx.m.wait(ctx); err != nil {
		return err
	}
	tx.m.mu.RLock()
	_, exists := tx.m.records[rec.Key]
	tx.m.mu.RUnlock()
	if exists || tx.pending(rec.Key) {
		return ErrDuplicate
	}
	tx.ops = append(tx.ops, memoryOp{rec: cloneRecord(rec)})
	return nil
}

func (tx *memoryTx) Update(ctx context.Context, rec Record) error {
	if tx.done {
		return ErrTxDone
	}
	if err := tx.m.wait(ctx); err != nil {
		return err
	}
	tx.m.mu.RLock()
	_, exists := tx.m.records[rec.Key]
	tx.m.mu.RUnlock()
	if !exists && !tx.pending(rec.Key) {
		return ErrMissing
	}
	tx.ops = append(tx.ops, memoryOp{rec: cloneRecord(rec), update: true})
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if tx.m.closed {
		return ErrClosed
	}
	// Re-validate under the write lock; another transaction may have committed
	// the same key since Add.
	for _, op := range tx.ops {
		if _, exists := tx.m.records[op.rec.Key]; !op.update && exists {
			return ErrDuplicate
		}
	}
	for _, op := range tx.ops {
		tx.m.records[op.rec.Key] = op.rec
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.ops = nil
	return nil
}

func cloneRecord(rec Record) Record {
	rec.Doc = slices.Clone(rec.Doc)
	return rec
}
