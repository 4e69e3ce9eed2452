package model

import "time"

// DayLock is an advisory lock serialising overlap checks for one cancha and
// fecha. Expired locks may be taken over.
type DayLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
