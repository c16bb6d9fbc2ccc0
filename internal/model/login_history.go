package model

import "time"

// LoginHistory records one successful sign-in.
type LoginHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"not null;index"`
	Device    string    `json:"device" gorm:"size:255"`
	IP        string    `json:"ip" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// NewLoginHistory trims the user agent to the column size.
func NewLoginHistory(userID uint, userAgent, ip string) LoginHistory {
	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}
	return LoginHistory{UserID: userID, Device: userAgent, IP: ip}
}
