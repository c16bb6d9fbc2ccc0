package contactbook

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/social"
	"contactbook_backend/pkg/utils/validation"
)

type MethodInput struct {
	Type      model.ContactMethodType `json:"type" validate:"required,oneof=email phone"`
	Value     string                  `json:"value" validate:"required,max=320"`
	IsPrimary bool                    `json:"isPrimary"`
}

type SocialLinkInput struct {
	Platform string `json:"platform" validate:"required,max=50"`
	URL      string `json:"url" validate:"required,url"`
}

type ConversationInput struct {
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	Summary    string  `json:"summary"`
	Transcript *string `json:"transcript"`
}

// Input is the body of create and full-replace requests. A nil child
// collection means "keep what is stored"; an empty one clears it.
type Input struct {
	Name           string               `json:"name" validate:"required,max=200"`
	JobTitle       string               `json:"jobTitle" validate:"max=200"`
	ImageURL       string               `json:"imageUrl" validate:"omitempty,url"`
	About          string               `json:"about"`
	WebsiteURL     string               `json:"website" validate:"omitempty,url"`
	CalendarLink   string               `json:"calendarLink" validate:"omitempty,url"`
	Tags           []string             `json:"tags" validate:"omitempty,dive,max=100"`
	ContactMethods *[]MethodInput       `json:"contactMethods" validate:"omitempty,dive"`
	SocialLinks    *[]SocialLinkInput   `json:"socialLinks" validate:"omitempty,dive"`
	Conversations  *[]ConversationInput `json:"conversations" validate:"omitempty,dive"`

	// ImageSourceURL is a public profile image to ingest after the write.
	ImageSourceURL string `json:"imageSourceUrl" validate:"omitempty,url"`
}

// Normalize trims text fields, deduplicates tags and lower-cases platforms.
func (in Input) Normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.WebsiteURL = strings.TrimSpace(in.WebsiteURL)
	in.CalendarLink = strings.TrimSpace(in.CalendarLink)
	in.ImageSourceURL = strings.TrimSpace(in.ImageSourceURL)
	in.Tags = NormalizeTags(in.Tags)

	if in.ContactMethods != nil {
		methods := make([]MethodInput, len(*in.ContactMethods))
		for i, m := range *in.ContactMethods {
			m.Type = model.ContactMethodType(strings.ToLower(strings.TrimSpace(string(m.Type))))
			m.Value = strings.TrimSpace(m.Value)
			methods[i] = m
		}
		in.ContactMethods = &methods
	}
	if in.SocialLinks != nil {
		links := make([]SocialLinkInput, len(*in.SocialLinks))
		for i, l := range *in.SocialLinks {
			l.Platform = social.Normalize(l.Platform)
			l.URL = strings.TrimSpace(l.URL)
			links[i] = l
		}
		in.SocialLinks = &links
	}
	if in.Conversations != nil {
		convs := make([]ConversationInput, len(*in.Conversations))
		for i, c := range *in.Conversations {
			c.Date = strings.TrimSpace(c.Date)
			convs[i] = c
		}
		in.Conversations = &convs
	}
	return in
}

// Validate checks field syntax, email-typed values and the one-primary-per-type rule.
func (in Input) Validate() error {
	if err := validation.Struct(in, "invalid contact"); err != nil {
		return err
	}
	if in.ContactMethods == nil {
		return nil
	}

	var details []apperror.FieldError
	primaries := make(map[model.ContactMethodType]int)
	for i, m := range *in.ContactMethods {
		if m.Type == model.ContactMethodEmail {
			if !validation.IsEmail(m.Value) {
				details = append(details, apperror.FieldError{
					Field:   fmt.Sprintf("contactMethods[%d].value", i),
					Message: "must be a valid email address",
				})
			}
		}
		if m.IsPrimary {
			primaries[m.Type]++
		}
	}
	for _, kind := range []model.ContactMethodType{model.ContactMethodEmail, model.ContactMethodPhone} {
		if primaries[kind] > 1 {
			details = append(details, apperror.FieldError{
				Field:   "contactMethods",
				Message: fmt.Sprintf("at most one primary %s is allowed", kind),
			})
		}
	}
	if len(details) > 0 {
		return apperror.InvalidInput("invalid contact", details...)
	}
	return nil
}

// NormalizeTags trims, drops empties and removes duplicates keeping first order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (in Input) methods(contactID uint) []model.ContactMethod {
	if in.ContactMethods == nil {
		return nil
	}
	out := make([]model.ContactMethod, 0, len(*in.ContactMethods))
	for _, m := range *in.ContactMethods {
		out = append(out, model.ContactMethod{ContactID: contactID, Type: m.Type, Value: m.Value, IsPrimary: m.IsPrimary})
	}
	return out
}

func (in Input) links(contactID uint) []model.SocialLink {
	if in.SocialLinks == nil {
		return nil
	}
	out := make([]model.SocialLink, 0, len(*in.SocialLinks))
	for _, l := range *in.SocialLinks {
		out = append(out, model.SocialLink{ContactID: contactID, Platform: l.Platform, URL: l.URL})
	}
	return out
}

// conversations assumes Validate already accepted every date.
func (in Input) conversations(contactID uint) []model.Conversation {
	if in.Conversations == nil {
		return nil
	}
	out := make([]model.Conversation, 0, len(*in.Conversations))
	for _, c := range *in.Conversations {
		d, _ := time.Parse(model.DateLayout, c.Date)
		out = append(out, model.Conversation{
			ContactID:  contactID,
			Date:       datatypes.Date(d),
			Summary:    c.Summary,
			Transcript: c.Transcript,
		})
	}
	return out
}
