package roster

import "errors"

var (
	ErrNotFound       = errors.New("roster: not found")
	ErrInvalidInput   = errors.New("roster: invalid input")
	ErrInvalidRiderID = errors.New("roster: invalid rider id")
	ErrFilterExpired  = errors.New("roster: filter expired")
)
