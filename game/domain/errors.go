package domain

import "errors"

var (
	ErrInvalidMove   = errors.New("invalid move")
	ErrInvalidRoster = errors.New("invalid roster")
	ErrUnknownPlayer = errors.New("unknown player")
)
