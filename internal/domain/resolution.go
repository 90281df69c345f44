package domain

// ResolutionState tracks the last-known resolution status of every market seen
// across runs. It is owned by the ingestion tracker and mutated only through
// atomic read-modify-write-persist cycles; all other components treat it as
// read-only.
type ResolutionState struct {
	Known map[string]Resolution
}

// NewResolutionState returns an empty state.
func NewResolutionState() *ResolutionState {
	return &ResolutionState{Known: make(map[string]Resolution)}
}

// Clone returns a deep copy, used to stage an update before it is persisted so
// a failed write leaves the original untouched.
func (s *ResolutionState) Clone() *ResolutionState {
	out := NewResolutionState()
	for id, r := range s.Known {
		out.Known[id] = r
	}
	return out
}

// ResolvedBefore reports whether the market was already recorded as resolved.
func (s *ResolutionState) ResolvedBefore(id string) bool {
	return s.Known[id].Resolved()
}
