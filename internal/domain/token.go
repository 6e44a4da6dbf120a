package domain

import "time"

// VerificationToken is a one-time email confirmation code. It is deleted
// when redeemed and is only redeemable while younger than the configured TTL.
type VerificationToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiredAt reports whether the token is older than ttl at now.
func (t *VerificationToken) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return !now.Before(t.CreatedAt.Add(ttl))
}
