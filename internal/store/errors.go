package store

import "errors"

var (
	ErrConflict            = errors.New("slot conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
