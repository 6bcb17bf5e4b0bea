package domain

import "time"

// RefreshToken records the server-side redemption state of an issued
// refresh token. The jti is the replay-detection key: a row is redeemable
// iff it is unused and unexpired, and redemption flips Used exactly once.
type RefreshToken struct {
	ID        int64
	UserID    int64
	JTI       string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
