package game

import "errors"

var (
	ErrMatchOver   = errors.New("match already over")
	ErrInvalidMove = errors.New("invalid move")
	ErrWrongMode   = errors.New("operation not available in this mode")
)
