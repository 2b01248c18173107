// Package player defines the account that owns game sessions.
package player

import "time"

// Player is a registered account. The password hash is bcrypt and never
// leaves the players service.
type Player struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
