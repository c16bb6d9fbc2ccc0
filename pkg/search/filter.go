package search

import (
	"strings"
	"time"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/utils/validation"
)

// Filter holds the optional contact search criteria. Every set field is ANDed.
type Filter struct {
	Email            string   `query:"email" validate:"omitempty,email"`
	Name             string   `query:"name" validate:"omitempty,max=200"`
	LinkedinURL      string   `query:"linkedinUrl" validate:"omitempty,url"`
	Tags             []string `query:"tags" validate:"omitempty,dive,max=100"`
	Keyword          string   `query:"keyword" validate:"omitempty,max=200"`
	ConversationDate string   `query:"conversationDate" validate:"omitempty,datetime=2006-01-02"`
	TranscriptText   string   `query:"transcriptText" validate:"omitempty,max=500"`
	DateFrom         string   `query:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo           string   `query:"dateTo" validate:"omitempty,datetime=2006-01-02"`
}

// Normalize trims every field and drops empty tags.
func (f Filter) Normalize() Filter {
	f.Email = strings.TrimSpace(f.Email)
	f.Name = strings.TrimSpace(f.Name)
	f.LinkedinURL = strings.TrimSpace(f.LinkedinURL)
	f.Keyword = strings.TrimSpace(f.Keyword)
	f.ConversationDate = strings.TrimSpace(f.ConversationDate)
	f.TranscriptText = strings.TrimSpace(f.TranscriptText)
	f.DateFrom = strings.TrimSpace(f.DateFrom)
	f.DateTo = strings.TrimSpace(f.DateTo)
	f.Tags = SplitTags(f.Tags)
	return f
}

// Validate rejects malformed filters before any query is built.
func (f Filter) Validate() error {
	if err := validation.Struct(f, "invalid search filter"); err != nil {
		return err
	}
	if f.DateFrom != "" && f.DateTo != "" {
		from, _ := time.Parse(model.DateLayout, f.DateFrom)
		to, _ := time.Parse(model.DateLayout, f.DateTo)
		if from.After(to) {
			return apperror.InvalidInput("invalid search filter", apperror.FieldError{
				Field:   "dateFrom",
				Message: "must not be after dateTo",
			})
		}
	}
	return nil
}

func (f Filter) IsEmpty() bool {
	return f.Email == "" && f.Name == "" && f.LinkedinURL == "" && len(f.Tags) == 0 &&
		f.Keyword == "" && f.ConversationDate == "" && f.TranscriptText == "" &&
		f.DateFrom == "" && f.DateTo == ""
}

// AnnotationTerm returns the term transcripts are scanned for. Keyword wins
// over transcript text when both are present.
func (f Filter) AnnotationTerm() string {
	if f.Keyword != "" {
		return f.Keyword
	}
	return f.TranscriptText
}

// SplitTags accepts repeated and comma separated tag values, trimming and
// deduplicating them.
func SplitTags(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			tag := strings.TrimSpace(part)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
