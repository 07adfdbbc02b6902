package store

import (
	"context"
	"sync"

	"github.com/aidline/dispatch/core/model"
)

// MemoryStore is a mutex-serialized in-memory Store used in tests and as the
// reference semantics for persistent implementations. Transactions run under
// one lock, so conflicting callers are fully serialized; writes are staged
// and applied only when the transaction body succeeds.
type MemoryStore struct {
	mu         sync.Mutex
	requests   map[string]model.HelpRequest
	ranked     map[string]model.RankedList
	volunteers map[string]model.Volunteer
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:   make(map[string]model.HelpRequest),
		ranked:     make(map[string]model.RankedList),
		volunteers: make(map[string]model.Volunteer),
	}
}

type memTx struct {
	s *MemoryStore
	// staged writes, applied on commit
	requests map[string]model.HelpRequest
	ranked   map[string]model.RankedList
}

func (t *memTx) GetRequest(id string) (model.HelpRequest, error) {
	if req, ok := t.requests[id]; ok {
		return req, nil
	}
	req, ok := t.s.requests[id]
	if !ok {
		return model.HelpRequest{}, ErrNotFound
	}
	return req, nil
}

func (t *memTx) PutRequest(req model.HelpRequest) error {
	t.requests[req.ID] = req
	return nil
}

func (t *memTx) GetRankedList(requestID string) (model.RankedList, error) {
	if l, ok := t.ranked[requestID]; ok {
		return l, nil
	}
	l, ok := t.s.ranked[requestID]
	if !ok {
		return model.RankedList{}, ErrNotFound
	}
	return l, nil
}

func (t *memTx) CreateRankedList(list model.RankedList) error {
	if _, ok := t.s.ranked[list.RequestID]; ok {
		return ErrRankedListExists
	}
	if _, ok := t.ranked[list.RequestID]; ok {
		return ErrRankedListExists
	}
	t.ranked[list.RequestID] = list
	return nil
}

// RunInTx serializes fn under the store lock and applies staged writes only
// when fn succeeds.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		requests: make(map[string]model.HelpRequest),
		ranked:   make(map[string]model.RankedList),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, req := range tx.requests {
		s.requests[id] = req
	}
	for id, l := range tx.ranked {
		s.ranked[id] = l
	}
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (model.HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return model.HelpRequest{}, ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) ListEligibleVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Volunteer
	for _, v := range s.volunteers {
		if v.Eligible() {
			out = append(out, v)
		}
	}
	return out, nil
}

// SeedRequest inserts a request directly. Request creation is owned by the
// sign-up service; tests use this to stand in for it.
func (s *MemoryStore) SeedRequest(req model.HelpRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
}

// SeedVolunteer inserts a volunteer directly.
func (s *MemoryStore) SeedVolunteer(v model.Volunteer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volunteers[v.ID] = v
}

// RankedList returns the stored ranked list for assertions in tests.
func (s *MemoryStore) RankedList(requestID string) (model.RankedList, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ranked[requestID]
	return l, ok
}
