// errors.go defines sentinel errors shared by the repository layer so callers
// can branch on conflict conditions without inspecting driver error codes.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateKey is returned when an insert violates a unique constraint,
// e.g. a subdomain or organization ID that is already taken.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNotFound is returned by update operations that matched no row.
var ErrNotFound = errors.New("record not found")

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
