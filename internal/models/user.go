package models

import (
	"gorm.io/gorm"
)

// User is an organiser signed in through Discord.
type User struct {
	gorm.Model
	DiscordID string `gorm:"uniqueIndex"`
	Username  string
	Email     string
	Avatar    string
	IsAdmin   bool `gorm:"default:false"`
}
