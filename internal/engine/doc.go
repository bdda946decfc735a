// Package engine hosts many independent voting rounds behind a single actor goroutine.
//
// Every mutation and query is funneled through a command channel, so callers on
// any goroutine see a consistent view of each round. Closed rounds are evicted
// once their retention period has passed.
package engine
