package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"password_hash" json:"-"`

	FirstName string `bson:"first_name" json:"first_name"`
	LastName  string `bson:"last_name" json:"last_name"`

	IsVerified bool `bson:"is_verified" json:"is_verified"`
	IsAdmin    bool `bson:"is_admin" json:"is_admin"`
	IsBlocked  bool `bson:"is_blocked" json:"is_blocked"`

	// Set at registration, cleared once the email is confirmed.
	VerificationCode string `bson:"verification_code,omitempty" json:"-"`

	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt     *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	EmailVerifiedAt *time.Time `bson:"email_verified_at,omitempty" json:"email_verified_at,omitempty"`
}

func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// DisplayName is what notifications address the user by.
func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

// Actor is the slice of a user the notification core needs.
type Actor struct {
	ID          primitive.ObjectID `json:"id"`
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	IsVerified  bool               `json:"is_verified"`
}

func (u *User) Actor() *Actor {
	return &Actor{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		Email:       u.Email,
		IsVerified:  u.IsVerified,
	}
}
