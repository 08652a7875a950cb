package service

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/graph"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGraphCapacity bounds how many tenant graphs stay resident
	// before the least recently used one is evicted.
	DefaultGraphCapacity = 64

	warmupConcurrency = 4
)

// ManagerStats is a snapshot of cache behavior since startup.
type ManagerStats struct {
	Entries    int   `json:"entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Loads      int64 `json:"loads"`
	LoadErrors int64 `json:"load_errors"`
}

type graphEntry struct {
	graph   *graph.Graph
	element *list.Element
	dirty   bool
}

type evictedGraph struct {
	id    uuid.UUID
	graph *graph.Graph
	lock  *sync.Mutex
	dirty bool
}

// GraphManager keeps one in-memory belief graph per tenant behind an LRU
// cache over the belief store. Memory is authoritative between saves: reads
// may use Get directly, while anything that mutates a graph must run inside
// WithGraph so the tenant's mutex serializes it against other writers and
// against eviction.
type GraphManager struct {
	beliefs  domain.BeliefStore
	logger   *zap.Logger
	capacity int

	mu      sync.RWMutex
	entries map[uuid.UUID]*graphEntry
	lru     *list.List
	locks   map[uuid.UUID]*sync.Mutex

	// Stats
	hits       int64
	misses     int64
	evictions  int64
	loads      int64
	loadErrors int64
}

func NewGraphManager(beliefs domain.BeliefStore, capacity int, logger *zap.Logger) *GraphManager {
	if capacity <= 0 {
		capacity = DefaultGraphCapacity
	}
	return &GraphManager{
		beliefs:  beliefs,
		logger:   logger,
		capacity: capacity,
		entries:  make(map[uuid.UUID]*graphEntry),
		lru:      list.New(),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Get returns the tenant's graph, loading it from the store on a cache miss.
// Concurrent misses for the same tenant share a single load. Get never
// fails: when the store is unreachable the tenant starts from an empty
// graph and the error is logged.
//
// The returned graph is a live object. Callers that only read may use it
// directly; callers that mutate must go through WithGraph instead.
func (m *GraphManager) Get(ctx context.Context, tenantID uuid.UUID) *graph.Graph {
	m.mu.RLock()
	entry, ok := m.entries[tenantID]
	m.mu.RUnlock()
	if ok {
		atomic.AddInt64(&m.hits, 1)
		m.touch(entry)
		return entry.graph
	}

	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return m.getLocked(ctx, tenantID)
}

// WithGraph runs fn with the tenant's graph while holding the tenant's
// mutex. All mutations go through here. fn must not call back into Get,
// WithGraph, SaveAll, or Invalidate for the same tenant.
func (m *GraphManager) WithGraph(ctx context.Context, tenantID uuid.UUID, fn func(g *graph.Graph) error) error {
	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return fn(m.getLocked(ctx, tenantID))
}

// Save persists a single belief through the store. Intended for use inside
// WithGraph after a mutation; failures leave memory authoritative.
func (m *GraphManager) Save(ctx context.Context, tenantID uuid.UUID, b *domain.Belief) error {
	return m.beliefs.Save(ctx, tenantID, b)
}

// SaveAll persists every belief in the tenant's cached graph and clears its
// dirty flag. Returns the number of beliefs written. A tenant that is not
// cached has nothing to save.
func (m *GraphManager) SaveAll(ctx context.Context, tenantID uuid.UUID) (int, error) {
	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	entry, ok := m.entries[tenantID]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}

	beliefs := entry.graph.List()
	if err := m.beliefs.SaveBatch(ctx, tenantID, beliefs); err != nil {
		return 0, err
	}

	m.mu.Lock()
	entry.dirty = false
	m.mu.Unlock()
	return len(beliefs), nil
}

// MarkDirty flags the tenant's cached graph as having unsaved mutations so
// the flush worker picks it up.
func (m *GraphManager) MarkDirty(tenantID uuid.UUID) {
	m.mu.Lock()
	if entry, ok := m.entries[tenantID]; ok {
		entry.dirty = true
	}
	m.mu.Unlock()
}

// SaveDirty flushes every dirty graph, logging and skipping tenants whose
// save fails. Returns the total number of beliefs written.
func (m *GraphManager) SaveDirty(ctx context.Context) int {
	m.mu.RLock()
	dirty := make([]uuid.UUID, 0)
	for id, entry := range m.entries {
		if entry.dirty {
			dirty = append(dirty, id)
		}
	}
	m.mu.RUnlock()

	saved := 0
	for _, id := range dirty {
		n, err := m.SaveAll(ctx, id)
		if err != nil {
			m.logger.Warn("failed to flush dirty graph",
				zap.String("tenant_id", id.String()),
				zap.Error(err))
			continue
		}
		saved += n
	}
	return saved
}

// Invalidate drops the tenant's graph from the cache, flushing it first if
// it has unsaved mutations. The next Get reloads from the store.
func (m *GraphManager) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	entry, ok := m.entries[tenantID]
	if ok {
		m.lru.Remove(entry.element)
		delete(m.entries, tenantID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if entry.dirty {
		if err := m.beliefs.SaveBatch(ctx, tenantID, entry.graph.List()); err != nil {
			m.logger.Warn("failed to flush invalidated graph",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
	}
}

// Clear drops every cached graph without saving. Dirty state is lost; call
// SaveDirty first when it matters.
func (m *GraphManager) Clear() {
	m.mu.Lock()
	m.entries = make(map[uuid.UUID]*graphEntry)
	m.lru.Init()
	m.mu.Unlock()
}

// Stats returns current cache statistics.
func (m *GraphManager) Stats() ManagerStats {
	m.mu.RLock()
	entries := len(m.entries)
	m.mu.RUnlock()

	return ManagerStats{
		Entries:    entries,
		Hits:       atomic.LoadInt64(&m.hits),
		Misses:     atomic.LoadInt64(&m.misses),
		Evictions:  atomic.LoadInt64(&m.evictions),
		Loads:      atomic.LoadInt64(&m.loads),
		LoadErrors: atomic.LoadInt64(&m.loadErrors),
	}
}

// WarmUp pre-loads the given tenants with bounded parallelism. Failures
// degrade to empty graphs inside Get, so warming never aborts.
func (m *GraphManager) WarmUp(ctx context.Context, tenantIDs []uuid.UUID) {
	if len(tenantIDs) == 0 {
		return
	}

	var eg errgroup.Group
	eg.SetLimit(warmupConcurrency)
	for _, id := range tenantIDs {
		eg.Go(func() error {
			m.Get(ctx, id)
			return nil
		})
	}
	_ = eg.Wait()

	m.logger.Info("belief graphs warmed", zap.Int("tenants", len(tenantIDs)))
}

// tenantLock returns the mutex for the given tenant, creating one if needed.
// Lock handles live for the life of the process so that a flush in progress
// keeps blocking reloads of the same tenant.
func (m *GraphManager) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	m.mu.RLock()
	lock, exists := m.locks[tenantID]
	m.mu.RUnlock()

	if exists {
		return lock
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if lock, exists = m.locks[tenantID]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	m.locks[tenantID] = lock
	return lock
}

// getLocked resolves the tenant's graph. Caller holds the tenant's mutex.
func (m *GraphManager) getLocked(ctx context.Context, tenantID uuid.UUID) *graph.Graph {
	m.mu.RLock()
	entry, ok := m.entries[tenantID]
	m.mu.RUnlock()
	if ok {
		atomic.AddInt64(&m.hits, 1)
		m.touch(entry)
		return entry.graph
	}

	atomic.AddInt64(&m.misses, 1)
	return m.insert(ctx, tenantID, m.load(ctx, tenantID))
}

func (m *GraphManager) load(ctx context.Context, tenantID uuid.UUID) *graph.Graph {
	atomic.AddInt64(&m.loads, 1)

	beliefs, err := m.beliefs.LoadAll(ctx, tenantID)
	if err != nil {
		atomic.AddInt64(&m.loadErrors, 1)
		m.logger.Warn("failed to load belief graph, starting empty",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return graph.New(tenantID)
	}
	return graph.Load(tenantID, beliefs)
}

// insert caches a freshly loaded graph, evicting from the LRU tail when
// over capacity. Dirty evictees are flushed outside m.mu. Caller holds the
// inserting tenant's mutex.
func (m *GraphManager) insert(ctx context.Context, tenantID uuid.UUID, g *graph.Graph) *graph.Graph {
	var dropped []evictedGraph

	m.mu.Lock()
	if existing, ok := m.entries[tenantID]; ok {
		m.mu.Unlock()
		return existing.graph
	}
	for len(m.entries) >= m.capacity {
		ev, ok := m.evictOldestLocked()
		if !ok {
			break
		}
		dropped = append(dropped, ev)
	}
	m.entries[tenantID] = &graphEntry{graph: g, element: m.lru.PushFront(tenantID)}
	m.mu.Unlock()

	for _, ev := range dropped {
		if ev.dirty {
			if err := m.beliefs.SaveBatch(ctx, ev.id, ev.graph.List()); err != nil {
				m.logger.Warn("failed to flush evicted graph",
					zap.String("tenant_id", ev.id.String()),
					zap.Error(err))
			}
		}
		ev.lock.Unlock()
	}
	return g
}

// evictOldestLocked scans from the LRU tail for a tenant whose mutex can be
// taken without waiting; a held mutex means a mutation is in flight there.
// The evictee is returned with its mutex still held so the caller can flush
// it after releasing m.mu. Caller holds m.mu.
func (m *GraphManager) evictOldestLocked() (evictedGraph, bool) {
	for e := m.lru.Back(); e != nil; e = e.Prev() {
		id := e.Value.(uuid.UUID)
		lock := m.locks[id]
		if !lock.TryLock() {
			continue
		}
		entry := m.entries[id]
		m.lru.Remove(e)
		delete(m.entries, id)
		atomic.AddInt64(&m.evictions, 1)
		return evictedGraph{id: id, graph: entry.graph, lock: lock, dirty: entry.dirty}, true
	}
	return evictedGraph{}, false
}

func (m *GraphManager) touch(entry *graphEntry) {
	m.mu.Lock()
	m.lru.MoveToFront(entry.element)
	m.mu.Unlock()
}
