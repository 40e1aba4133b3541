package models

import "gorm.io/gorm"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user in the system.
type User struct {
	gorm.Model
	Nickname     string  `gorm:"size:255;unique;not null"`
	Email        string  `gorm:"size:255;unique;not null"`
	PasswordHash string  `gorm:"size:255;not null"`
	Role         string  `gorm:"size:50;not null;default:'user';index"`
	Wishlist     []*Game `gorm:"many2many:user_wishlist_games;"`
}
