// Package session manages conversation sessions on top of the agent loop.
//
// Invariants:
// - At most one turn runs per session; concurrent starts fail with ErrSessionBusy.
// - Sessions are created lazily on first use.
// - Idle cache entries are evicted on a sweep; history stays durable in the store.
//
// Usage:
//
//	mgr, _ := session.NewManager(session.Options{...})
//	events, _ := mgr.StartTurn(ctx, "session-1", "hello")
//	for ev := range events {
//		_ = ev
//	}
package session
