package domain

import "time"

// Vote is a single ballot for Value, recorded at CastAt.
type Vote struct {
	Value  string
	CastAt time.Time
}

// ValueTally is the decayed weight accumulated by one distinct value.
type ValueTally struct {
	Value       string
	Weight      float64
	Share       float64
	Votes       int
	FirstCastAt time.Time
}

// Tally is a point-in-time breakdown of all recorded votes.
// Values are ordered by highest weight, then earliest first cast, then value.
type Tally struct {
	Threshold float64
	Total     float64
	VoteCount int
	Values    []ValueTally
}

// Decide returns the winning value, if any value's share reaches the threshold.
// Because Values is ordered by share, only the leader can qualify.
func (t Tally) Decide() Decision {
	d := Decision{Threshold: t.Threshold, VoteCount: t.VoteCount}
	if t.Total == 0 || len(t.Values) == 0 {
		return d
	}

	leader := t.Values[0]
	if leader.Share >= t.Threshold {
		d.Value = leader.Value
		d.Share = leader.Share
		d.Reached = true
	}
	return d
}

// Decision is the outcome of aggregating a round.
// Reached is false for the normal "no decision" outcome.
type Decision struct {
	Value     string
	Reached   bool
	Share     float64
	Threshold float64
	VoteCount int
}
