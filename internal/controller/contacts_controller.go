package controller

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/internal/middleware"
	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/contactbook"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/search"
	"contactbook_backend/pkg/utils/validation"
)

type ImageFromURLInput struct {
	URL string `json:"url" validate:"required,url"`
}

var (
	contacts   *contactbook.Service
	composer   *search.Composer
	images     *contactbook.Images
	contactLog = logger.Nop()
)

func InitContactController(svc *contactbook.Service, c *search.Composer, img *contactbook.Images, log *logger.Logger) {
	contacts = svc
	composer = c
	images = img
	if log != nil {
		contactLog = log
	}
}

// imageOwner is the storage path segment for a user's images.
func imageOwner(userID uint) string {
	return fmt.Sprintf("user-%d", userID)
}

func ListContacts(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	list, err := contacts.List(c.UserContext(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// SearchContacts runs the search composer over the query string.
func SearchContacts(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	var filter search.Filter
	if err := c.QueryParser(&filter); err != nil {
		return apperror.Wrap(err, apperror.KindInvalidInput, "invalid search filter")
	}

	results, err := composer.Search(c.UserContext(), claims.UserID, filter)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

func GetContact(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	contact, err := contacts.Get(c.UserContext(), claims.UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(contact)
}

func CreateContact(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	input := new(contactbook.Input)
	if err := parseBody(c, input); err != nil {
		return err
	}

	ctx := c.UserContext()
	contact, err := contacts.Create(ctx, claims.UserID, *input)
	if err != nil {
		return err
	}

	ingestSourceImage(ctx, claims.UserID, contact, input.ImageSourceURL)
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// UpdateContact replaces a contact. Child collections absent from the body
// are kept.
func UpdateContact(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	input := new(contactbook.Input)
	if err := parseBody(c, input); err != nil {
		return err
	}

	ctx := c.UserContext()
	contact, previous, err := contacts.Replace(ctx, claims.UserID, id, *input)
	if err != nil {
		return err
	}

	ingestSourceImage(ctx, claims.UserID, contact, input.ImageSourceURL)
	if previous != "" && previous != contact.ImageURL {
		images.Discard(ctx, previous)
	}
	return c.JSON(contact)
}

// ingestSourceImage copies a remote profile image into storage after the
// contact is written. Failures are logged and leave the image unchanged.
func ingestSourceImage(ctx context.Context, userID uint, contact *model.Contact, sourceURL string) {
	if sourceURL == "" || !images.Enabled() {
		return
	}
	stored, err := images.Ingest(ctx, imageOwner(userID), sourceURL)
	if err != nil {
		contactLog.Warn("Image ingest failed", "contact_id", contact.ID, "source", sourceURL, "error", err)
		return
	}
	if _, err := contacts.SetImage(ctx, userID, contact.ID, stored); err != nil {
		contactLog.Warn("Could not attach ingested image", "contact_id", contact.ID, "error", err)
		images.Discard(ctx, stored)
		return
	}
	contact.ImageURL = stored
}

func DeleteContact(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	deleted, err := contacts.Delete(ctx, claims.UserID, id)
	if err != nil {
		return err
	}
	images.Discard(ctx, deleted.ImageURL)
	return message(c, fiber.StatusOK, "Contact deleted")
}

// UploadContactImage stores a multipart "image" field as the contact image.
func UploadContactImage(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return apperror.InvalidInput("No file uploaded",
			apperror.FieldError{Field: "image", Message: "is required"})
	}
	if err := validation.Image(file); err != nil {
		return err
	}

	ctx := c.UserContext()
	if _, err := contacts.Get(ctx, claims.UserID, id); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return apperror.Wrap(err, apperror.KindInvalidInput, "Could not read uploaded file")
	}
	defer src.Close()

	stored, err := images.Store(ctx, imageOwner(claims.UserID), src)
	if err != nil {
		return err
	}
	return attachImage(c, claims.UserID, id, stored)
}

// ImportContactImage ingests a remote image as the contact image.
func ImportContactImage(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	input := new(ImageFromURLInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	if err := validation.Struct(input, "invalid image url"); err != nil {
		return err
	}

	ctx := c.UserContext()
	if _, err := contacts.Get(ctx, claims.UserID, id); err != nil {
		return err
	}

	stored, err := images.Ingest(ctx, imageOwner(claims.UserID), input.URL)
	if err != nil {
		return err
	}
	return attachImage(c, claims.UserID, id, stored)
}

func attachImage(c *fiber.Ctx, userID, contactID uint, stored string) error {
	ctx := c.UserContext()
	previous, err := contacts.SetImage(ctx, userID, contactID, stored)
	if err != nil {
		images.Discard(ctx, stored)
		return err
	}
	if previous != "" && previous != stored {
		images.Discard(ctx, previous)
	}
	return c.JSON(fiber.Map{"imageUrl": stored})
}

func DeleteContactImage(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	previous, err := contacts.SetImage(ctx, claims.UserID, id, "")
	if err != nil {
		return err
	}
	images.Discard(ctx, previous)
	return message(c, fiber.StatusOK, "Image removed")
}

// ListTags returns the distinct tags across the caller's contacts.
func ListTags(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	tags, err := contacts.Tags(c.UserContext(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tags": tags})
}
