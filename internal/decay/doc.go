// Package decay implements the vote weight decay strategies.
//
// Each strategy maps a vote's age to a weight multiplier. Exponential halves the
// weight every half-life, Linear falls to a fixed 0.1 floor, and Step drops the
// weight to 1/(k+1) after k whole steps. Non-positive parameters are rejected at
// construction so Weight never divides by zero.
package decay
