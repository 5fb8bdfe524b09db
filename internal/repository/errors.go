package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by transactional writes when a guarded invariant
// would be violated. Services translate them into API errors.
var (
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrClaimAlreadyPending = errors.New("claim already pending")
	ErrClaimNotPending     = errors.New("claim not pending")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
