package model

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email            string `json:"email" gorm:"uniqueIndex;not null"`
	Password         string `json:"-" gorm:"not null"`
	Name             string `json:"name"`
	IsAdmin          bool   `json:"is_admin" gorm:"default:false"`
	StripeCustomerID string `json:"-" gorm:"index"`

	Contacts      []Contact          `json:"-"`
	Subscriptions []UserSubscription `json:"-"`
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"is_admin":   u.IsAdmin,
		"created_at": u.CreatedAt,
	}
}
