package verification

import "errors"

var (
	ErrNotFound     = errors.New("verification: not found")
	ErrInvalidInput = errors.New("verification: invalid input")
	ErrConflict     = errors.New("verification: conflict")
	ErrForbidden    = errors.New("verification: forbidden")
)
