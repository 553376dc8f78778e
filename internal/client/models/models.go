// Package models defines the client-side view of blog data. Values are
// decoded from either transport and never carry wire types.
package models

import "time"

type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
}

type Post struct {
	ID        int64
	Title     string
	Content   string
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostPage is one page of the newest-first post listing.
type PostPage struct {
	Posts  []*Post
	Total  int64
	Limit  int
	Offset int
}

// Session is what a successful login returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
	Username  string
}

// PostUpdate carries a partial update; nil fields are left unchanged.
type PostUpdate struct {
	Title   *string
	Content *string
}

// Empty reports whether the update changes nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil
}

// SessionStatus is the locally known state of the session slot.
type SessionStatus struct {
	LoggedIn  bool
	UserID    int64
	Username  string
	ExpiresAt time.Time
	Expired   bool
}
