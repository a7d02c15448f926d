package model

import "time"

// User is a Telegram user known to the tracker. ID is the Telegram user id.
type User struct {
	ID        int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	Username  string    `json:"username"`
	JoinedAt  time.Time `json:"joined_at"`
	// LastObservedCycle is the cycle.Cycle index seen on the user's latest
	// event; 0 means the user has never been observed.
	LastObservedCycle int `json:"last_observed_cycle"`
}
