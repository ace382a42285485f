// Package idgen generates identifiers for decisions and requests.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// WithPrefix generates a time-ordered ID with a prefix (e.g. "dec_", "req_").
// Result is prefix + 32 hex chars of a version 7 UUID, so IDs sort by
// creation time.
func WithPrefix(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4.
		id = uuid.New()
	}
	return prefix + strings.ReplaceAll(id.String(), "-", "")
}
