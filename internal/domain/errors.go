// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
)
