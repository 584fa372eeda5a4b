package db

import "time"

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:100;not null"`
	PasswordHash string    `json:"-" gorm:"size:100;not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// PlaceholderOwner is assigned to conversations created without an
// authenticated caller (the message endpoints accept anonymous writes).
const PlaceholderOwner = "default-user"
