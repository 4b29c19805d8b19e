package domain

import "errors"

// Remote store failures. Backends wrap one of these so that workflows can name
// the likely cause to the user.
var (
	ErrRecordRejected   = errors.New("record rejected by store")
	ErrDuplicateRecord  = errors.New("record violates a uniqueness constraint")
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)
