package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidline/dispatch/core/fault"
	coremetrics "github.com/aidline/dispatch/core/metrics"
	"github.com/aidline/dispatch/core/model"
	"github.com/aidline/dispatch/core/ranking"
	"github.com/aidline/dispatch/core/store"
	"github.com/aidline/dispatch/internal/eventbus"

	"github.com/aidline/dispatch/core/logger"
)

// Transition names used in events and metrics.
const (
	TransitionInitiate = "initiate"
	TransitionDecline  = "decline"
	TransitionAccept   = "accept"
)

// Engine owns every write to a request's lifecycle fields. It is safe for
// concurrent use; per-request serialization is delegated to the store's
// transactions.
type Engine struct {
	store  store.Store
	oracle ranking.Oracle
	sink   coremetrics.Sink
	bus    eventbus.EventBus
	log    logger.Logger
	cfg    Config

	// now is swapped in tests.
	now func() time.Time
}

// NewEngine creates an Engine. The sink and bus may be nil; the store, oracle
// and logger are required.
func NewEngine(st store.Store, oracle ranking.Oracle, sink coremetrics.Sink, bus eventbus.EventBus, log logger.Logger, cfg Config) (*Engine, error) {
	if st == nil || oracle == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		store:  st,
		oracle: oracle,
		sink:   sink,
		bus:    bus,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// InitiateResult is the outcome of a successful initiation.
type InitiateResult struct {
	RankedCount int `json:"rankedCount"`
}

// InitiateRanking claims an open request, builds its candidate pool, obtains
// the oracle ranking and points the request at the best candidate. An empty
// pool is not an error: the request lands in no_volunteers with zero ranked
// entries and the oracle is never called. On oracle failure the claim is
// rolled back to open so the owner can retry.
func (e *Engine) InitiateRanking(ctx context.Context, callerID, requestID string) (InitiateResult, error) {
	if err := checkArgs(callerID, requestID); err != nil {
		return InitiateResult{}, err
	}

	// Claim: open -> processing. The claim is what stops two initiators
	// from both running the ranking pipeline.
	if err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		req, err := e.getRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != callerID {
			return fault.New(fault.KindPermissionDenied, "caller does not own request %s", requestID)
		}
		if !e.claimable(req) {
			return fault.New(fault.KindInvalidState, "request %s already processed (status %s)", requestID, req.Status)
		}
		now := e.now()
		req.Status = model.StatusProcessing
		req.ProcessingAt = &now
		return e.putRequest(tx, req)
	}); err != nil {
		e.observe(coremetrics.TransitionEvent{
			RequestID: requestID, Transition: TransitionInitiate, CallerID: callerID,
			Outcome: string(fault.KindOf(err)), Time: e.now(),
		})
		return InitiateResult{}, err
	}

	res, err := e.rankAndSeed(ctx, callerID, requestID)
	if err != nil {
		return InitiateResult{}, err
	}
	return res, nil
}

// rankAndSeed runs the part of initiation that happens outside the claim
// transaction: pool build, oracle call, ranked-list persist and the final
// status write.
func (e *Engine) rankAndSeed(ctx context.Context, callerID, requestID string) (InitiateResult, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return InitiateResult{}, e.rollbackClaim(ctx, requestID, mapStoreErr(err, requestID))
	}

	volunteers, err := e.store.ListEligibleVolunteers(ctx)
	if err != nil {
		return InitiateResult{}, e.rollbackClaim(ctx, requestID, fault.Wrap(fault.KindInternal, err, "list volunteers"))
	}
	pool := ranking.BuildPool(req.Location, volunteers)

	if len(pool) == 0 {
		if err := e.finalize(ctx, requestID, func(r *model.HelpRequest) {
			r.Status = model.StatusNoVolunteers
			r.CurrentVolunteerID = ""
			r.CurrentVolunteerIndex = 0
			r.ProcessingAt = nil
		}, nil); err != nil {
			return InitiateResult{}, e.rollbackClaim(ctx, requestID, err)
		}
		e.log.Infof("request %s: empty candidate pool, no_volunteers", requestID)
		e.observe(coremetrics.TransitionEvent{
			RequestID: requestID, Transition: TransitionInitiate, CallerID: callerID,
			FromStatus: model.StatusOpen, ToStatus: model.StatusNoVolunteers,
			Outcome: "ok", Time: e.now(),
		})
		return InitiateResult{RankedCount: 0}, nil
	}

	start := e.now()
	entries, err := e.oracle.Rank(ctx, req.Resume, pool)
	latency := e.now().Sub(start)
	if err == nil && len(entries) == 0 {
		err = fault.New(fault.KindRankingFormat, "oracle returned an empty ranking")
	}
	if err != nil {
		e.recordOracle(requestID, len(pool), 0, latency, string(fault.KindOf(err)))
		e.log.Errorf("request %s: oracle ranking failed: %v", requestID, err)
		return InitiateResult{}, e.rollbackClaim(ctx, requestID, err)
	}
	e.recordOracle(requestID, len(pool), len(entries), latency, "ok")

	list := model.RankedList{RequestID: requestID, Entries: entries, CreatedAt: e.now()}
	if err := e.finalize(ctx, requestID, func(r *model.HelpRequest) {
		r.Status = model.StatusAwaitingVolunteer
		r.CurrentVolunteerID = entries[0].VolunteerID
		r.CurrentVolunteerIndex = 0
		r.ProcessingAt = nil
	}, &list); err != nil {
		return InitiateResult{}, e.rollbackClaim(ctx, requestID, err)
	}

	e.log.Infof("request %s: ranked %d candidates, first candidate %s", requestID, len(entries), entries[0].VolunteerID)
	e.observe(coremetrics.TransitionEvent{
		RequestID: requestID, Transition: TransitionInitiate, CallerID: callerID,
		FromStatus: model.StatusOpen, ToStatus: model.StatusAwaitingVolunteer,
		RankedCount: len(entries), Outcome: "ok", Time: e.now(),
	})
	return InitiateResult{RankedCount: len(entries)}, nil
}

// finalize commits the end of initiation: the request must still hold the
// claim, the ranked list (when present) is created write-once, and the
// mutation is applied in the same transaction.
func (e *Engine) finalize(ctx context.Context, requestID string, mutate func(*model.HelpRequest), list *model.RankedList) error {
	return e.store.RunInTx(ctx, func(tx store.Tx) error {
		req, err := e.getRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.StatusProcessing {
			return fault.New(fault.KindInvalidState, "request %s lost its claim (status %s)", requestID, req.Status)
		}
		if list != nil {
			if err := tx.CreateRankedList(*list); err != nil {
				if errors.Is(err, store.ErrRankedListExists) {
					return fault.Wrap(fault.KindInvalidState, err, "request %s is already ranked", requestID)
				}
				return fault.Wrap(fault.KindInternal, err, "persist ranked list for %s", requestID)
			}
		}
		mutate(&req)
		return e.putRequest(tx, req)
	})
}

// rollbackClaim returns cause after releasing the processing claim so the
// owner can re-attempt initiation. A rollback failure is logged but never
// masks the original failure.
func (e *Engine) rollbackClaim(ctx context.Context, requestID string, cause error) error {
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		req, err := e.getRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.StatusProcessing {
			return nil
		}
		req.Status = model.StatusOpen
		req.ProcessingAt = nil
		return e.putRequest(tx, req)
	})
	if err != nil {
		e.log.Errorf("request %s: claim rollback failed: %v", requestID, err)
	}
	e.observe(coremetrics.TransitionEvent{
		RequestID: requestID, Transition: TransitionInitiate,
		Outcome: string(fault.KindOf(cause)), Time: e.now(),
	})
	return cause
}

// DeclineCurrent advances the escalation pointer after the currently asked
// volunteer declines. When the ranked list is exhausted the request exits to
// no_volunteers; otherwise the next candidate becomes current and the status
// stays awaiting_volunteer.
func (e *Engine) DeclineCurrent(ctx context.Context, callerID, requestID string) error {
	return e.respond(ctx, callerID, requestID, TransitionDecline)
}

// AcceptCurrent records the currently asked volunteer's acceptance and moves
// the request to the terminal assigned status. Preconditions mirror
// DeclineCurrent exactly.
func (e *Engine) AcceptCurrent(ctx context.Context, callerID, requestID string) error {
	return e.respond(ctx, callerID, requestID, TransitionAccept)
}

func (e *Engine) respond(ctx context.Context, callerID, requestID, transition string) error {
	if err := checkArgs(callerID, requestID); err != nil {
		return err
	}

	var ev coremetrics.TransitionEvent
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		req, err := e.getRequest(tx, requestID)
		if err != nil {
			return err
		}
		list, err := tx.GetRankedList(requestID)
		if err != nil {
			return mapStoreErr(err, requestID)
		}
		if req.Status != model.StatusAwaitingVolunteer {
			return fault.New(fault.KindInvalidState, "request %s is not awaiting a volunteer (status %s)", requestID, req.Status)
		}
		if req.CurrentVolunteerID != callerID {
			return fault.New(fault.KindPermissionDenied, "caller is not the volunteer currently asked on request %s", requestID)
		}

		now := e.now()
		from := req.Status
		switch transition {
		case TransitionAccept:
			req.Status = model.StatusAssigned
			req.LastResponse = model.ResponseAccepted
		case TransitionDecline:
			nextIndex := req.CurrentVolunteerIndex + 1
			if nextIndex >= len(list.Entries) {
				req.Status = model.StatusNoVolunteers
				req.CurrentVolunteerID = ""
			} else {
				req.CurrentVolunteerID = list.VolunteerAt(nextIndex)
			}
			// The index advances past the end on exhaustion; it keeps
			// the audit trail and lets replays fail the identity check.
			req.CurrentVolunteerIndex = nextIndex
			req.LastResponse = model.ResponseDeclined
		default:
			return fault.New(fault.KindInternal, "unknown transition %q", transition)
		}
		req.LastResponderID = callerID
		req.LastRespondedAt = &now
		ev = coremetrics.TransitionEvent{
			RequestID: requestID, Transition: transition, CallerID: callerID,
			FromStatus: from, ToStatus: req.Status,
			Index: req.CurrentVolunteerIndex, RankedCount: len(list.Entries),
			Outcome: "ok", Time: now,
		}
		return e.putRequest(tx, req)
	})
	if err != nil {
		e.observe(coremetrics.TransitionEvent{
			RequestID: requestID, Transition: transition, CallerID: callerID,
			Outcome: string(fault.KindOf(err)), Time: e.now(),
		})
		return err
	}

	e.log.Infof("request %s: %s by %s -> %s", requestID, transition, callerID, ev.ToStatus)
	e.observe(ev)
	return nil
}

// claimable reports whether a fresh initiation may take the request: it is
// open, or a previous claim went stale without its final write.
func (e *Engine) claimable(req model.HelpRequest) bool {
	if req.Status == model.StatusOpen {
		return true
	}
	if req.Status == model.StatusProcessing && req.ProcessingAt != nil {
		return e.now().Sub(*req.ProcessingAt) > e.cfg.StaleClaimAfter()
	}
	return false
}

func (e *Engine) getRequest(tx store.Tx, requestID string) (model.HelpRequest, error) {
	req, err := tx.GetRequest(requestID)
	if err != nil {
		return model.HelpRequest{}, mapStoreErr(err, requestID)
	}
	return req, nil
}

func (e *Engine) putRequest(tx store.Tx, req model.HelpRequest) error {
	if err := tx.PutRequest(req); err != nil {
		return fault.Wrap(fault.KindInternal, err, "write request %s", req.ID)
	}
	return nil
}

func (e *Engine) observe(ev coremetrics.TransitionEvent) {
	if err := e.sink.RecordTransition(ev); err != nil {
		e.log.Warnf("metrics sink: %v", err)
	}
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) recordOracle(requestID string, poolSize, rankedSize int, latency time.Duration, outcome string) {
	ev := coremetrics.OracleCallEvent{
		RequestID: requestID, PoolSize: poolSize, RankedSize: rankedSize,
		Latency: latency, Outcome: outcome, Time: e.now(),
	}
	if err := e.sink.RecordOracleCall(ev); err != nil {
		e.log.Warnf("metrics sink: %v", err)
	}
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func checkArgs(callerID, requestID string) error {
	if callerID == "" {
		return fault.New(fault.KindUnauthenticated, "caller identity required")
	}
	if requestID == "" {
		return fault.New(fault.KindInvalidArgument, "requestId is required")
	}
	return nil
}

func mapStoreErr(err error, requestID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fault.Wrap(fault.KindNotFound, err, "request %s", requestID)
	}
	return fault.Wrap(fault.KindInternal, err, "request %s", requestID)
}
