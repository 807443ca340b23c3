package models

import "time"

type User struct {
	ID           string
	UserName     string
	Salt         []byte
	PasswordHash []byte
	IsStaff      bool
	CreatedAt    time.Time
}
