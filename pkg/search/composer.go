package search

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
)

const linkedinPlatform = "linkedin"

// Composer turns a Filter into one scoped read over contacts and their children.
type Composer struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComposer(db *gorm.DB, log *logger.Logger) *Composer {
	return &Composer{db: db, log: log}
}

// Search validates f, runs the query for userID and annotates transcripts.
func (c *Composer) Search(ctx context.Context, userID uint, f Filter) ([]model.Contact, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var contacts []model.Contact
	err := model.WithChildren(Scope(c.db.WithContext(ctx), userID, f)).
		Order("contacts.created_at DESC, contacts.id DESC").
		Find(&contacts).Error
	if err != nil {
		c.log.Error("Contact search failed", "user_id", userID, "error", err)
		return nil, apperror.DataAccess(err)
	}

	if term := f.AnnotationTerm(); term != "" {
		Annotate(contacts, term)
	}
	return contacts, nil
}

// Scope applies the owner restriction and every set filter to db.
func Scope(db *gorm.DB, userID uint, f Filter) *gorm.DB {
	q := db.Model(&model.Contact{}).Where("contacts.user_id = ?", userID)

	if f.Email != "" {
		q = q.Where(
			"EXISTS (SELECT 1 FROM contact_methods cm WHERE cm.contact_id = contacts.id AND cm.type = ? AND cm.value = ?)",
			model.ContactMethodEmail, f.Email,
		)
	}

	if f.Name != "" {
		q = q.Where("contacts.name ILIKE ?", likePattern(f.Name))
	}

	if f.LinkedinURL != "" {
		q = q.Where(
			"EXISTS (SELECT 1 FROM social_links sl WHERE sl.contact_id = contacts.id AND sl.platform = ? AND sl.url = ?)",
			linkedinPlatform, f.LinkedinURL,
		)
	}

	if len(f.Tags) > 0 {
		q = q.Where("contacts.tags @> ?::text[]", pq.StringArray(f.Tags))
	}

	if f.Keyword != "" {
		q = q.Where(
			"(contacts.name ILIKE @kw OR contacts.about ILIKE @kw OR contacts.job_title ILIKE @kw OR "+
				"EXISTS (SELECT 1 FROM conversations cv WHERE cv.contact_id = contacts.id AND (cv.summary ILIKE @kw OR cv.transcript ILIKE @kw)))",
			sql.Named("kw", likePattern(f.Keyword)),
		)
	}

	if f.TranscriptText != "" {
		q = q.Where(
			"EXISTS (SELECT 1 FROM conversations cv WHERE cv.contact_id = contacts.id AND strpos(cv.transcript, ?) > 0)",
			f.TranscriptText,
		)
	}

	if f.DateFrom != "" || f.DateTo != "" {
		cond := []string{"cv.contact_id = contacts.id"}
		var args []interface{}
		if f.DateFrom != "" {
			cond = append(cond, "cv.date >= ?::date")
			args = append(args, f.DateFrom)
		}
		if f.DateTo != "" {
			cond = append(cond, "cv.date <= ?::date")
			args = append(args, f.DateTo)
		}
		q = q.Where("EXISTS (SELECT 1 FROM conversations cv WHERE "+strings.Join(cond, " AND ")+")", args...)
	}

	if f.ConversationDate != "" {
		q = q.Where(
			"EXISTS (SELECT 1 FROM conversations cv WHERE cv.contact_id = contacts.id AND cv.date = ?::date)",
			f.ConversationDate,
		)
	}

	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps term for a literal substring ILIKE match.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
