package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: unique constraint collision (username, email blind index)
//   - ErrClaimConflict: a conditional status update matched zero rows because a
//     concurrent claimant or reclaimer won; callers retry the next candidate
//   - ErrExpired: token/session has expired
//   - ErrInvalidState: entity in wrong state for requested transition
//   - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrClaimConflict = errors.New("claim conflict")
	ErrExpired       = errors.New("expired")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
