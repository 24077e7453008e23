package state

import (
	"log"
	"sync"

	"github.com/xiaot623/agui/internal/domain"
)

// Store holds the authoritative per-thread state trees. Implementations
// must serialize access per thread id, never with one process-global lock.
type Store interface {
	// GetOrInit returns a deep copy of the thread's tree, creating it with
	// init (which may be nil for an empty tree) on first reference.
	GetOrInit(threadID string, init func() map[string]any) map[string]any

	// Snapshot returns a deep copy of the thread's tree, creating an empty
	// tree on first reference.
	Snapshot(threadID string) map[string]any

	// Replace swaps the thread's entire tree for snapshot.
	Replace(threadID string, snapshot map[string]any)

	// ApplyDelta applies ops in order. An op that fails to apply is skipped
	// with a warning; the remaining ops still apply.
	ApplyDelta(threadID string, ops []domain.PatchOp)

	// LockThread serializes whole runs against the thread. The returned
	// function releases the lock.
	LockThread(threadID string) (unlock func())
}

type entry struct {
	mu    sync.Mutex // guards tree
	runMu sync.Mutex // serializes whole runs for the thread
	tree  map[string]any
}

// MemoryStore is the in-process Store. State lives for the process
// lifetime only; threads are never explicitly destroyed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) entryFor(threadID string, init func() map[string]any) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[threadID]
	if !ok {
		tree := map[string]any{}
		if init != nil {
			tree = init()
		}
		e = &entry{tree: tree}
		s.entries[threadID] = e
	}
	return e
}

// GetOrInit implements Store.
func (s *MemoryStore) GetOrInit(threadID string, init func() map[string]any) map[string]any {
	e := s.entryFor(threadID, init)
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTree(e.tree).(map[string]any)
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(threadID string) map[string]any {
	return s.GetOrInit(threadID, nil)
}

// Replace implements Store.
func (s *MemoryStore) Replace(threadID string, snapshot map[string]any) {
	e := s.entryFor(threadID, nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree = copyTree(snapshot).(map[string]any)
}

// ApplyDelta implements Store.
func (s *MemoryStore) ApplyDelta(threadID string, ops []domain.PatchOp) {
	e := s.entryFor(threadID, nil)
	e.mu.Lock()
	defer e.mu.Unlock()

	var root any = e.tree
	for _, op := range ops {
		next, err := Apply(root, op)
		if err != nil {
			log.Printf("WARN: skipping patch op %s %s on thread %s: %v", op.Op, op.Path, threadID, err)
			continue
		}
		root = next
	}
	if tree, ok := root.(map[string]any); ok {
		e.tree = tree
	}
}

// LockThread implements Store.
func (s *MemoryStore) LockThread(threadID string) func() {
	e := s.entryFor(threadID, nil)
	e.runMu.Lock()
	return e.runMu.Unlock
}

// copyTree deep-copies a JSON-compatible tree. Scalars are shared.
func copyTree(node any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = copyTree(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = copyTree(v)
		}
		return out
	default:
		return node
	}
}
