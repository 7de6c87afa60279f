package model

import "time"

type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url"`
	IsPrivate  bool      `json:"is_private"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserPublic is the profile shape exposed to other users. Online is derived
// from LastSeenAt at read time; there is no stored online flag.
type UserPublic struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url"`
	IsPrivate  bool      `json:"is_private"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Online     bool      `json:"online"`
}

// ToPublic converts a User for client responses. onlineWindow is the recency
// threshold within which last_seen_at counts as online.
func (u *User) ToPublic(onlineWindow time.Duration) UserPublic {
	return UserPublic{
		ID:         u.ID,
		Username:   u.Username,
		AvatarURL:  u.AvatarURL,
		IsPrivate:  u.IsPrivate,
		LastSeenAt: u.LastSeenAt,
		Online:     time.Since(u.LastSeenAt) <= onlineWindow,
	}
}

type FollowStatus string

const (
	FollowStatusPending  FollowStatus = "pending"
	FollowStatusAccepted FollowStatus = "accepted"
)

type Follow struct {
	FollowerID string       `json:"follower_id"`
	FolloweeID string       `json:"followee_id"`
	Status     FollowStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}
