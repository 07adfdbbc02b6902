// Package requests exposes the dispatch operations over HTTP. Every
// operation requires a caller identity resolved from the Authorization
// bearer token; typed faults from the engine map onto HTTP statuses.
package requests

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aidline/dispatch/core/dispatch"
	"github.com/aidline/dispatch/core/fault"
	corestore "github.com/aidline/dispatch/core/store"
)

// TokenVerifier resolves a bearer token to a user ID.
type TokenVerifier interface {
	Identify(token string) (string, error)
}

// StaticTokens verifies against a fixed token-to-user mapping from the
// configuration. Production deployments plug an IdP-backed verifier instead.
type StaticTokens map[string]string

func (s StaticTokens) Identify(token string) (string, error) {
	userID, ok := s[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return userID, nil
}

// Handler routes the dispatch API.
type Handler struct {
	engine *dispatch.Engine
	store  corestore.Store
	tokens TokenVerifier
}

// NewHandler returns the /api/requests handler tree.
func NewHandler(engine *dispatch.Engine, store corestore.Store, tokens TokenVerifier) http.Handler {
	h := &Handler{engine: engine, store: store, tokens: tokens}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/requests/initiate", h.initiate)
	mux.HandleFunc("/api/requests/decline", h.decline)
	mux.HandleFunc("/api/requests/accept", h.accept)
	mux.HandleFunc("/api/requests/status", h.status)
	return mux
}

type transitionRequest struct {
	RequestID string `json:"requestId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// callerID resolves the caller identity. An absent or unknown token yields
// the empty identity; the engine rejects it as unauthenticated.
func (h *Handler) callerID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ""
	}
	userID, err := h.tokens.Identify(token)
	if err != nil {
		return ""
	}
	return userID
}

func (h *Handler) decodeTransition(w http.ResponseWriter, r *http.Request) (transitionRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return transitionRequest{}, false
	}
	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFault(w, fault.Wrap(fault.KindInvalidArgument, err, "invalid request body"))
		return transitionRequest{}, false
	}
	return body, true
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	res, err := h.engine.InitiateRanking(r.Context(), h.callerID(r), body.RequestID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "rankedCount": res.RankedCount})
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeclineCurrent(r.Context(), h.callerID(r), body.RequestID); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	if err := h.engine.AcceptCurrent(r.Context(), h.callerID(r), body.RequestID); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// status is a read-only inspection endpoint for the request owner and the
// currently asked volunteer.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller := h.callerID(r)
	if caller == "" {
		writeFault(w, fault.New(fault.KindUnauthenticated, "caller identity required"))
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeFault(w, fault.New(fault.KindInvalidArgument, "id is required"))
		return
	}
	req, err := h.store.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, corestore.ErrNotFound) {
			writeFault(w, fault.Wrap(fault.KindNotFound, err, "request %s", id))
		} else {
			writeFault(w, fault.Wrap(fault.KindInternal, err, "request %s", id))
		}
		return
	}
	if caller != req.OwnerID && caller != req.CurrentVolunteerID {
		writeFault(w, fault.New(fault.KindPermissionDenied, "not involved in request %s", id))
		return
	}
	writeJSON(w, map[string]any{
		"requestId":             req.ID,
		"status":                req.Status,
		"currentVolunteerId":    req.CurrentVolunteerID,
		"currentVolunteerIndex": req.CurrentVolunteerIndex,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: string(kind), Message: err.Error()})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindUnauthenticated:
		return http.StatusUnauthorized
	case fault.KindInvalidArgument:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindPermissionDenied:
		return http.StatusForbidden
	case fault.KindInvalidState:
		return http.StatusConflict
	case fault.KindRankingFormat, fault.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
