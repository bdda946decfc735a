package domain

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid strategy parameter")
	ErrUnknownDecay     = errors.New("unknown decay strategy")
	ErrUnknownEscalator = errors.New("unknown escalator strategy")
	ErrRoundNotFound    = errors.New("round not found")
	ErrEngineStopped    = errors.New("engine stopped")
)
