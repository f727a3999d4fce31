package core

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidElement  = errors.New("invalid element")
	ErrInvalidPatch    = errors.New("invalid element patch")
	ErrInvalidKey      = errors.New("invalid storage key")
	ErrMalformedRecord = errors.New("malformed record")
)
