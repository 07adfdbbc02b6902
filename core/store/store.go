// Package store defines the transactional document store the dispatch engine
// runs on. Every lifecycle mutation happens inside RunInTx: the transaction
// body re-reads current state, checks its preconditions against that snapshot
// and writes the outcome, and the store guarantees that two conflicting
// transactions on the same request are serialized so exactly one of them sees
// a passing precondition.
package store

import (
	"context"
	"errors"

	"github.com/aidline/dispatch/core/model"
)

var (
	// ErrNotFound is returned when a request or ranked list is absent.
	ErrNotFound = errors.New("store: not found")
	// ErrRankedListExists rejects a second ranked-list create for the same
	// request. Ranked lists are write-once.
	ErrRankedListExists = errors.New("store: ranked list already exists")
)

// Tx exposes reads and writes scoped to one atomic transaction.
type Tx interface {
	GetRequest(id string) (model.HelpRequest, error)
	PutRequest(req model.HelpRequest) error
	GetRankedList(requestID string) (model.RankedList, error)
	// CreateRankedList persists a ranked list exactly once per request;
	// a duplicate create fails with ErrRankedListExists.
	CreateRankedList(list model.RankedList) error
}

// Store is the engine's view of persistence.
type Store interface {
	// RunInTx executes fn inside one atomic transaction. If fn returns an
	// error the transaction is rolled back and that error is returned
	// unchanged.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// GetRequest is a plain snapshot read outside any transaction.
	GetRequest(ctx context.Context, id string) (model.HelpRequest, error)
	// ListEligibleVolunteers returns approved volunteers, unordered.
	ListEligibleVolunteers(ctx context.Context) ([]model.Volunteer, error)
}
