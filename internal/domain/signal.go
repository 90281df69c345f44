package domain

import "time"

// Signal is a trading-opportunity notification: a leader market resolved and a
// semantically related follower has not yet repriced. At most one signal is
// ever emitted per (leader, follower) pair.
type Signal struct {
	ID               string // UUID for record keeping
	LeaderID         string
	FollowerID       string
	EdgeSimilarity   float64
	LeaderResolution Resolution
	EmittedAt        time.Time
}

// DedupKey identifies the pair this signal covers. Downstream consumers must
// be idempotent on this key: delivery is at-least-once, never more than one
// distinct signal per key.
func (s Signal) DedupKey() string {
	return s.LeaderID + "::" + s.FollowerID
}

// EmittedSet is the persisted set of dedup keys for which a signal has already
// been emitted. The pair state machine is {no-signal, signal-emitted} with
// signal-emitted terminal.
type EmittedSet struct {
	keys map[string]struct{}
}

// NewEmittedSet returns an empty set.
func NewEmittedSet() *EmittedSet {
	return &EmittedSet{keys: make(map[string]struct{})}
}

// NewEmittedSetFrom restores a set from persisted keys.
func NewEmittedSetFrom(keys []string) *EmittedSet {
	s := NewEmittedSet()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains reports whether a signal was already emitted for the key.
func (s *EmittedSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Mark records the key as emitted.
func (s *EmittedSet) Mark(key string) { s.keys[key] = struct{}{} }

// Len returns the number of emitted keys.
func (s *EmittedSet) Len() int { return len(s.keys) }
