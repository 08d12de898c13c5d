package models

import "time"

// User is the owner of conversations. Users are created lazily on the
// first request carrying a previously unseen API key; only the key's
// HMAC digest is stored.
type User struct {
	ID         int64     `json:"id"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
