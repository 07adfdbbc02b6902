// Package ranking owns the candidate pool construction and the contract with
// the external ranking oracle. The oracle is a black box: it receives the
// requester context and the unordered pool, and must answer with a strictly
// shaped ordered list. All shape validation lives here; the oracle
// implementation under infra only moves bytes.
package ranking

import (
	"context"

	"github.com/aidline/dispatch/core/model"
)

// Oracle ranks a candidate pool for one request. Implementations must return
// entries already validated by ParseRankedOutput or equivalent; the engine
// persists the result verbatim.
type Oracle interface {
	Rank(ctx context.Context, resume map[string]any, pool []model.Candidate) ([]model.RankedEntry, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, resume map[string]any, pool []model.Candidate) ([]model.RankedEntry, error)

func (f OracleFunc) Rank(ctx context.Context, resume map[string]any, pool []model.Candidate) ([]model.RankedEntry, error) {
	return f(ctx, resume, pool)
}
