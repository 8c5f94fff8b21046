package team

import "errors"

var (
	ErrNotFound     = errors.New("team: not found")
	ErrInvalidInput = errors.New("team: invalid input")
	ErrConflict     = errors.New("team: conflict")
)
