package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	UserCode     string    `bson:"user_code" json:"user_code"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	FullName     string    `bson:"full_name,omitempty" json:"full_name,omitempty"`
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Status       string    `bson:"status,omitempty" json:"status,omitempty"`
	IsOnline     bool      `bson:"is_online" json:"is_online"`
	LastSeen     time.Time `bson:"last_seen" json:"last_seen"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// UserUpdate carries the mutable profile fields. Nil fields are left untouched.
type UserUpdate struct {
	FullName  *string    `json:"full_name,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	Status    *string    `json:"status,omitempty"`
	IsOnline  *bool      `json:"is_online,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

func (u UserUpdate) Empty() bool {
	return u.FullName == nil && u.AvatarURL == nil && u.Bio == nil &&
		u.Status == nil && u.IsOnline == nil && u.LastSeen == nil
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.FullName != nil {
		user.FullName = *u.FullName
	}
	if u.AvatarURL != nil {
		user.AvatarURL = *u.AvatarURL
	}
	if u.Bio != nil {
		user.Bio = *u.Bio
	}
	if u.Status != nil {
		user.Status = *u.Status
	}
	if u.IsOnline != nil {
		user.IsOnline = *u.IsOnline
	}
	if u.LastSeen != nil {
		user.LastSeen = *u.LastSeen
	}
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Username
}

// Initials returns up to two upper-case initials for avatar placeholders.
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	first := func(s string) string {
		r, _ := utf8.DecodeRuneInString(s)
		return strings.ToUpper(string(r))
	}
	if len(parts) == 1 {
		return first(parts[0])
	}
	return first(parts[0]) + first(parts[len(parts)-1])
}
