package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ContactMethodType string

const (
	ContactMethodEmail ContactMethodType = "email"
	ContactMethodPhone ContactMethodType = "phone"
)

func (t ContactMethodType) Valid() bool {
	return t == ContactMethodEmail || t == ContactMethodPhone
}

type Contact struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UserID       uint           `json:"userId" gorm:"index;not null"`
	Name         string         `json:"name" gorm:"not null"`
	JobTitle     string         `json:"jobTitle"`
	ImageURL     string         `json:"imageUrl"`
	About        string         `json:"about" gorm:"type:text"`
	WebsiteURL   string         `json:"website"`
	CalendarLink string         `json:"calendarLink"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[];not null;default:'{}'"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	ContactMethods []ContactMethod `json:"contactMethods" gorm:"constraint:OnDelete:CASCADE"`
	SocialLinks    []SocialLink    `json:"socialLinks" gorm:"constraint:OnDelete:CASCADE"`
	Conversations  []Conversation  `json:"conversations" gorm:"constraint:OnDelete:CASCADE"`
}

type ContactMethod struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ContactID uint              `json:"contactId" gorm:"index;not null"`
	Type      ContactMethodType `json:"type" gorm:"not null"`
	Value     string            `json:"value" gorm:"not null"`
	IsPrimary bool              `json:"isPrimary" gorm:"not null;default:false"`
}

type SocialLink struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ContactID uint   `json:"contactId" gorm:"index;not null"`
	Platform  string `json:"platform" gorm:"not null"`
	URL       string `json:"url" gorm:"not null"`
}

type Conversation struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	ContactID  uint           `json:"contactId" gorm:"index;not null"`
	Date       datatypes.Date `json:"date" gorm:"not null;index"`
	Summary    string         `json:"summary" gorm:"type:text"`
	Transcript *string        `json:"transcript,omitempty" gorm:"type:text"`

	// Filled by search annotation, never persisted. Once annotated both are
	// always rendered, including an empty positions list.
	MatchCount     *int   `json:"matchCount,omitempty" gorm:"-"`
	MatchPositions *[]int `json:"matchPositions,omitempty" gorm:"-"`
}

// DateString renders the conversation day as YYYY-MM-DD.
func (c Conversation) DateString() string {
	return time.Time(c.Date).Format(DateLayout)
}

// MarshalJSON emits the date as a plain calendar day.
func (c Conversation) MarshalJSON() ([]byte, error) {
	type alias Conversation
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(c), Date: c.DateString()})
}

const DateLayout = "2006-01-02"

// WithChildren preloads every child collection of a contact in a stable order.
func WithChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ContactMethods", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("contact_methods.id")
		}).
		Preload("SocialLinks", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("social_links.id")
		}).
		Preload("Conversations", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("conversations.date DESC, conversations.id")
		})
}
