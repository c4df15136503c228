// Package session manages in-memory conversation state keyed by session ID.
//
// Invariants:
// - A session ID maps to exactly one session for the life of the process.
// - History is bounded to the configured window; oldest turns evict first.
// - The greeted flag flips false to true once and never reverts.
// - Turns for the same session are serialized via per-session locks; turns
//   for different sessions run fully concurrent.
//
// Usage:
//
//	store := session.NewStore(session.Config{WindowPairs: 4})
//	id := store.GetOrCreateID("")
//	store.AppendTurn(id, "me siento triste", "Siento que estés pasando por esto")
//	history, _ := store.History(id)
//	_ = history
package session
