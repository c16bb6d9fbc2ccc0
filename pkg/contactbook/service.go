package contactbook

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/social"
)

// Service owns contact writes and single-contact reads.
type Service struct {
	db       *gorm.DB
	registry *social.Registry
	log      *logger.Logger
}

func NewService(db *gorm.DB, registry *social.Registry, log *logger.Logger) *Service {
	return &Service{db: db, registry: registry, log: log}
}

// Create inserts a contact and its children in one transaction.
func (s *Service) Create(ctx context.Context, userID uint, in Input) (*model.Contact, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	contact := model.Contact{
		UserID:         userID,
		Name:           in.Name,
		JobTitle:       in.JobTitle,
		ImageURL:       in.ImageURL,
		About:          in.About,
		WebsiteURL:     in.WebsiteURL,
		CalendarLink:   in.CalendarLink,
		Tags:           pq.StringArray(in.Tags),
		ContactMethods: in.methods(0),
		SocialLinks:    in.links(0),
		Conversations:  in.conversations(0),
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&contact).Error
	}); err != nil {
		s.log.Error("Could not create contact", "user_id", userID, "error", err)
		return nil, apperror.DataAccess(err)
	}

	s.registerPlatforms(in)
	return &contact, nil
}

// Replace overwrites the scalar fields of a contact and replaces every child
// collection present in the input. Omitted collections are kept. It returns
// the stored contact and the image URL it had before the update.
func (s *Service) Replace(ctx context.Context, userID, id uint, in Input) (*model.Contact, string, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, "", err
	}

	var previousImage string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact model.Contact
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&contact).Error; err != nil {
			return err
		}
		previousImage = contact.ImageURL

		err := tx.Model(&contact).
			Select("name", "job_title", "image_url", "about", "website_url", "calendar_link", "tags").
			Updates(model.Contact{
				Name:         in.Name,
				JobTitle:     in.JobTitle,
				ImageURL:     in.ImageURL,
				About:        in.About,
				WebsiteURL:   in.WebsiteURL,
				CalendarLink: in.CalendarLink,
				Tags:         pq.StringArray(in.Tags),
			}).Error
		if err != nil {
			return err
		}

		if in.ContactMethods != nil {
			if err := replaceChildren(tx, id, &model.ContactMethod{}, in.methods(id)); err != nil {
				return err
			}
		}
		if in.SocialLinks != nil {
			if err := replaceChildren(tx, id, &model.SocialLink{}, in.links(id)); err != nil {
				return err
			}
		}
		if in.Conversations != nil {
			if err := replaceChildren(tx, id, &model.Conversation{}, in.conversations(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperror.NotFound("contact not found")
		}
		s.log.Error("Could not replace contact", "contact_id", id, "error", err)
		return nil, "", apperror.DataAccess(err)
	}

	s.registerPlatforms(in)

	updated, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	return updated, previousImage, nil
}

// replaceChildren deletes the contact's rows in table and inserts rows.
func replaceChildren[T any](tx *gorm.DB, contactID uint, table *T, rows []T) error {
	if err := tx.Where("contact_id = ?", contactID).Delete(table).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*model.Contact, error) {
	var contact model.Contact
	err := model.WithChildren(s.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("contact not found")
		}
		return nil, apperror.DataAccess(err)
	}
	return &contact, nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]model.Contact, error) {
	var contacts []model.Contact
	err := model.WithChildren(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&contacts).Error
	if err != nil {
		s.log.Error("Could not list contacts", "user_id", userID, "error", err)
		return nil, apperror.DataAccess(err)
	}
	return contacts, nil
}

// Delete removes a contact and its children. The deleted contact is returned
// so its image can be cleaned up.
func (s *Service) Delete(ctx context.Context, userID, id uint) (*model.Contact, error) {
	var contact model.Contact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&contact).Error; err != nil {
			return err
		}
		for _, child := range []interface{}{&model.ContactMethod{}, &model.SocialLink{}, &model.Conversation{}} {
			if err := tx.Where("contact_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Contact{}, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("contact not found")
		}
		s.log.Error("Could not delete contact", "contact_id", id, "error", err)
		return nil, apperror.DataAccess(err)
	}
	return &contact, nil
}

// SetImage stores a new image URL (empty clears it) and returns the old one.
func (s *Service) SetImage(ctx context.Context, userID, id uint, imageURL string) (string, error) {
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact model.Contact
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "image_url").
			Where("id = ? AND user_id = ?", id, userID).
			First(&contact).Error
		if err != nil {
			return err
		}
		previous = contact.ImageURL
		return tx.Model(&contact).Update("image_url", imageURL).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NotFound("contact not found")
		}
		s.log.Error("Could not update contact image", "contact_id", id, "error", err)
		return "", apperror.DataAccess(err)
	}
	return previous, nil
}

func (s *Service) Count(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Contact{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, apperror.DataAccess(err)
	}
	return count, nil
}

// Tags returns the sorted, distinct union of the user's contact tags.
func (s *Service) Tags(ctx context.Context, userID uint) ([]string, error) {
	tags := []string{}
	err := s.db.WithContext(ctx).
		Raw("SELECT DISTINCT unnest(tags) AS tag FROM contacts WHERE user_id = ? ORDER BY tag", userID).
		Scan(&tags).Error
	if err != nil {
		s.log.Error("Could not list tags", "user_id", userID, "error", err)
		return nil, apperror.DataAccess(err)
	}
	return tags, nil
}

func (s *Service) registerPlatforms(in Input) {
	if in.SocialLinks == nil || s.registry == nil {
		return
	}
	for _, l := range *in.SocialLinks {
		if s.registry.Add(l.Platform) {
			s.log.Info("Registered social network", "platform", l.Platform)
		}
	}
}
