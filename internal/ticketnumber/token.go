package ticketnumber

import (
	"strings"

	"github.com/google/uuid"
)

// NewTrackingToken returns a 32-character hex token suitable for
// unauthenticated customer lookup. Uniqueness is ultimately enforced by the
// database constraint on tickets.tracking_token.
func NewTrackingToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
