// Package domain holds the core types shared across the poll engine.
// The Poll record is the single source of truth: every in-memory session
// object must be fully reconstructible from it.
package domain

import "time"

// Poll is the sole durable entity. It is persisted as a whole on every
// mutation (full-overwrite semantics, no partial-field merge).
type Poll struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`

	// Votes maps option index to count. The key set is exactly
	// {0 .. len(Options)-1} for the poll's entire lifetime.
	Votes map[int]int `json:"votes"`

	// Voters is the set of participant IDs that have cast a ballot.
	// Membership only grows; sum(Votes) == len(Voters) at all times.
	Voters map[string]bool `json:"voters"`

	CreatedAt time.Time `json:"created_at"`
	EndTime   time.Time `json:"end_time"`

	// Opaque external references owned by the rendering side.
	// The engine stores and forwards them, never interprets them.
	OriginRef  string `json:"origin_ref,omitempty"`
	DisplayRef string `json:"display_ref,omitempty"`
	ResultsRef string `json:"results_ref,omitempty"`

	// Finalized is set once the closing render has been performed,
	// making closure idempotent across restarts.
	Finalized bool `json:"finalized"`
}

// Closed reports whether the poll's deadline has elapsed.
func (p *Poll) Closed(now time.Time) bool {
	return !now.Before(p.EndTime)
}

// HasVoted reports whether the given participant already cast a ballot.
func (p *Poll) HasVoted(voterID string) bool {
	return p.Voters[voterID]
}

// TotalVotes returns the sum of all option counts.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, n := range p.Votes {
		total += n
	}
	return total
}

// Clone returns a deep copy, safe to hand out as a snapshot.
func (p *Poll) Clone() *Poll {
	clone := *p
	clone.Options = append([]string(nil), p.Options...)
	clone.Votes = make(map[int]int, len(p.Votes))
	for i, n := range p.Votes {
		clone.Votes[i] = n
	}
	clone.Voters = make(map[string]bool, len(p.Voters))
	for id := range p.Voters {
		clone.Voters[id] = true
	}
	return &clone
}
