package intake

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/keylock"
	"github.com/civicdesk/grievance-service/internal/observability"
)

// SessionStore persists sessions keyed by sender. The registry serializes
// access per sender, so implementations only need per-call atomicity.
type SessionStore interface {
	Load(ctx context.Context, sender string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sender string) error
	Senders(ctx context.Context) ([]string, error)
}

// Registry owns all intake sessions. Every read-modify-write for a sender
// happens under that sender's lock; senders never block each other.
type Registry struct {
	store   SessionStore
	locks   *keylock.Map
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithMetrics records evictions.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry builds a registry over store with the given idle TTL.
func NewRegistry(store SessionStore, ttl time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		locks:  keylock.New(),
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the idle lifetime of a session.
func (r *Registry) TTL() time.Duration { return r.ttl }

// GetOrCreate returns the sender's live session, starting a fresh idle one
// when none exists or the stored one has expired.
func (r *Registry) GetOrCreate(ctx context.Context, sender string) (*Session, error) {
	unlock := r.locks.Lock(sender)
	defer unlock()
	s, err := r.load(ctx, sender)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Put stores s as its sender's session.
func (r *Registry) Put(ctx context.Context, s *Session) error {
	unlock := r.locks.Lock(s.Sender)
	defer unlock()
	return r.save(ctx, s)
}

// Evict discards the sender's session and any draft it holds.
func (r *Registry) Evict(ctx context.Context, sender string) error {
	unlock := r.locks.Lock(sender)
	defer unlock()
	return r.store.Delete(ctx, sender)
}

// WithSession runs fn on the sender's session under the sender's lock and
// stores the session fn returns. When fn fails nothing is stored.
func (r *Registry) WithSession(ctx context.Context, sender string, fn func(*Session) (*Session, error)) error {
	unlock := r.locks.Lock(sender)
	defer unlock()

	current, err := r.load(ctx, sender)
	if err != nil {
		return err
	}
	next, err := fn(current.Clone())
	if err != nil {
		return err
	}
	next.Sender = sender
	next.LastActivity = r.now()
	return r.save(ctx, next)
}

// Sweep evicts every session idle longer than the TTL and returns how many
// it removed. Each check runs under the sender's lock so an in-flight
// message is never cut short.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	senders, err := r.store.Senders(ctx)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, sender := range senders {
		if ctx.Err() != nil {
			break
		}
		removed, err := r.evictIfExpired(ctx, sender)
		if err != nil {
			r.logger.Warn("session sweep failed", zap.String("sender", sender), zap.Error(err))
			continue
		}
		if removed {
			evicted++
		}
	}
	r.metrics.RecordEvictions(evicted)
	return evicted, ctx.Err()
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("session sweep aborted", zap.Error(err))
			}
			if n > 0 {
				r.logger.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) evictIfExpired(ctx context.Context, sender string) (bool, error) {
	unlock := r.locks.Lock(sender)
	defer unlock()
	s, ok, err := r.store.Load(ctx, sender)
	if err != nil || !ok {
		return false, err
	}
	if !s.Expired(r.now(), r.ttl) {
		return false, nil
	}
	return true, r.store.Delete(ctx, sender)
}

// load must be called with the sender's lock held.
func (r *Registry) load(ctx context.Context, sender string) (*Session, error) {
	s, ok, err := r.store.Load(ctx, sender)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if !ok || s.Expired(now, r.ttl) {
		return NewSession(sender, now), nil
	}
	return s, nil
}

// save must be called with the sender's lock held. Idle sessions carry no
// draft, so they are dropped instead of stored.
func (r *Registry) save(ctx context.Context, s *Session) error {
	if s.State == StateIdle {
		return r.store.Delete(ctx, s.Sender)
	}
	return r.store.Save(ctx, s.Clone())
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemorySessionStore builds an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Load(_ context.Context, sender string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sender]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Sender] = s.Clone()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sender)
	return nil
}

func (m *MemorySessionStore) Senders(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for sender := range m.sessions {
		out = append(out, sender)
	}
	return out, nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
