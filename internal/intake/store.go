package intake

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store holds in-progress conversations keyed by session id.
//
// Save is optimistic: it succeeds only when conv.Version matches the stored
// version, and bumps conv.Version on success.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is a threadsafe process-local Store. Entries past their
// ExpiresAt are invisible to Get and removed by the janitor.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[string]*Conversation),
		now:   time.Now,
	}
}

func (s *MemoryStore) expired(c *Conversation) bool {
	return !c.ExpiresAt.IsZero() && !s.now().Before(c.ExpiresAt)
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[sessionID]
	if !ok || s.expired(c) {
		return nil, ErrSessionNotFound
	}
	return cloneConversation(c), nil
}

func (s *MemoryStore) Create(ctx context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.convs[conv.SessionID]; ok && !s.expired(old) && old.Stage != StageComplete {
		return ErrSessionExists
	}
	conv.Version = 1
	s.convs[conv.SessionID] = cloneConversation(conv)
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.convs[conv.SessionID]
	if !ok || s.expired(old) {
		return ErrSessionNotFound
	}
	if old.Version != conv.Version {
		return ErrVersionConflict
	}
	conv.Version++
	s.convs[conv.SessionID] = cloneConversation(conv)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, sessionID)
	return nil
}

// Len counts live conversations
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.convs {
		if !s.expired(c) {
			n++
		}
	}
	return n
}

// Sweep drops expired conversations and reports how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.convs {
		if s.expired(c) {
			delete(s.convs, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired conversations every interval until ctx is done
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("Swept expired conversations")
				}
			}
		}
	}()
}
