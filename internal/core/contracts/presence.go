package contracts

import (
	"context"
	"time"

	"novahub/internal/core/domain"
)

// PresenceStore keeps ephemeral, TTL-bounded presence state per user.
type PresenceStore interface {
	// Touch marks the user online and extends the marker by ttl.
	Touch(ctx context.Context, userID string, ttl time.Duration) error
	// SetStatus records the last announced status for ttl.
	SetStatus(ctx context.Context, userID string, status domain.UserStatus, ttl time.Duration) error
	// Clear removes every presence key of the user.
	Clear(ctx context.Context, userID string) error
}
