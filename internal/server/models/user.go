// Package models defines server-side records persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash is an argon2id PHC string and
// must never leave the server.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
