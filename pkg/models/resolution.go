package models

import "time"

// MatchStatus is the matcher's decision for one unresolved record
type MatchStatus string

const (
	// MatchStatusAuto means one candidate cleared the auto threshold with margin
	MatchStatusAuto MatchStatus = "AUTO"
	// MatchStatusAmbiguous means plausible candidates could not be separated
	MatchStatusAmbiguous MatchStatus = "AMBIGUOUS"
	// MatchStatusNone means no candidate cleared the consider threshold
	MatchStatusNone MatchStatus = "NONE"
)

// MatchResult is the matcher output. Candidates are ordered score-descending,
// ties broken by canonical_id ascending, so identical inputs produce
// identical output.
type MatchResult struct {
	Status     MatchStatus `json:"status"`
	Best       string      `json:"best,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// ResolutionReport summarizes one resolution pass
type ResolutionReport struct {
	PassID       string    `json:"pass_id"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	NewCanonical int       `json:"new_canonical"`
	AutoMatched  int       `json:"auto_matched"`
	Ambiguous    int       `json:"ambiguous"`
	Unmatched    int       `json:"unmatched"`
	Failed       int       `json:"failed"`
	Unchanged    int       `json:"unchanged"`
	Merged       int       `json:"merged"`
}
