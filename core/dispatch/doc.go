// Package dispatch implements the ranked escalation state machine. One help
// request is offered to one volunteer at a time, walking an oracle-produced
// ranked list top to bottom: initiation claims the request, builds and ranks
// the candidate pool, and points at the best candidate; each decline advances
// the pointer by one; acceptance and pool exhaustion are terminal.
//
// Every transition runs inside a store transaction that re-reads the request,
// checks the transition's preconditions against that snapshot and writes the
// outcome atomically. Concurrent callers racing on the same request are
// serialized by the store: exactly one sees its precondition pass, the other
// observes the post-transition state and fails with a typed fault. Replays
// are rejected the same way, so no dedupe token exists.
package dispatch
