package models

import "time"

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds optional descriptive metadata for a user.
type Profile struct {
	Username   string `json:"username"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
	Bio        string `json:"bio"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	ProfilePic *string `json:"profilePic"`
	Bio        *string `json:"bio"`
}

// ApplyTo overwrites the fields of p that are set in u.
func (u ProfileUpdate) ApplyTo(p *Profile) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.ProfilePic != nil {
		p.ProfilePic = *u.ProfilePic
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
}
