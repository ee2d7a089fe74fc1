package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionStore persists one ArenaRecord and one action log per arena.
// Save is a compare-and-swap on the revision returned by Load; rev 0 means
// the record must not exist yet. A mismatch returns ErrConflict.
type SessionStore interface {
	Load(ctx context.Context, arenaID string) (*ArenaRecord, uint64, error)
	Save(ctx context.Context, arenaID string, rec *ArenaRecord, rev uint64) (uint64, error)
	Delete(ctx context.Context, arenaID string) error
	AppendAction(ctx context.Context, arenaID string, action GameAction) error
	Actions(ctx context.Context, arenaID string, since int64) ([]GameAction, error)
	Close() error
}

type memRecord struct {
	data    []byte
	rev     uint64
	expires time.Time
}

type memAction struct {
	action  GameAction
	expires time.Time
}

// MemoryStore is a SessionStore kept in process memory. Records are stored
// encoded so callers never share state with the store.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]memRecord
	actions   map[string][]memAction
	rev       uint64
	recordTTL time.Duration
	actionTTL time.Duration
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore(recordTTL, actionTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]memRecord),
		actions:   make(map[string][]memAction),
		recordTTL: recordTTL,
		actionTTL: actionTTL,
		now:       time.Now,
	}
}

func (s *MemoryStore) Load(ctx context.Context, arenaID string) (*ArenaRecord, uint64, error) {
	s.mu.Lock()
	r, ok := s.records[arenaID]
	if ok && s.now().After(r.expires) {
		delete(s.records, arenaID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, 0, fmt.Errorf("%w: arena %s", ErrNotFound, arenaID)
	}

	var rec ArenaRecord
	if err := msgpack.Unmarshal(r.data, &rec); err != nil {
		return nil, 0, fmt.Errorf("%w: decode arena %s: %v", ErrStore, arenaID, err)
	}
	return &rec, r.rev, nil
}

func (s *MemoryStore) Save(ctx context.Context, arenaID string, rec *ArenaRecord, rev uint64) (uint64, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: encode arena %s: %v", ErrStore, arenaID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[arenaID]
	if ok && s.now().After(cur.expires) {
		delete(s.records, arenaID)
		ok = false
	}
	switch {
	case rev == 0 && ok:
		return 0, fmt.Errorf("%w: arena %s already exists", ErrConflict, arenaID)
	case rev != 0 && (!ok || cur.rev != rev):
		return 0, fmt.Errorf("%w: arena %s changed", ErrConflict, arenaID)
	}
	s.rev++
	s.records[arenaID] = memRecord{data: data, rev: s.rev, expires: s.now().Add(s.recordTTL)}
	return s.rev, nil
}

func (s *MemoryStore) Delete(ctx context.Context, arenaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, arenaID)
	delete(s.actions, arenaID)
	return nil
}

func (s *MemoryStore) AppendAction(ctx context.Context, arenaID string, action GameAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[arenaID] = append(s.purge(arenaID), memAction{action: action, expires: s.now().Add(s.actionTTL)})
	return nil
}

func (s *MemoryStore) Actions(ctx context.Context, arenaID string, since int64) ([]GameAction, error) {
	s.mu.Lock()
	live := s.purge(arenaID)
	s.actions[arenaID] = live
	out := make([]GameAction, 0, len(live))
	for _, a := range live {
		if a.action.Timestamp > since {
			out = append(out, a.action)
		}
	}
	s.mu.Unlock()
	sortActions(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// purge drops expired actions for an arena; caller holds s.mu
func (s *MemoryStore) purge(arenaID string) []memAction {
	list := s.actions[arenaID]
	now := s.now()
	kept := list[:0]
	for _, a := range list {
		if now.Before(a.expires) {
			kept = append(kept, a)
		}
	}
	return kept
}

// sortActions orders actions by timestamp, breaking ties by id
func sortActions(list []GameAction) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp < list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
}
