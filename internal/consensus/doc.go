// Package consensus aggregates votes cast during a bounded window into a single
// decision. Each vote's weight decays with age and the share required to win is
// set by an escalator as the window progresses.
//
// All time reads go through an injected clockwork.Clock. A clock that moves
// backwards relative to the window start is treated as zero elapsed time.
package consensus
