package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/profile"
)

type ProfileLookup interface {
	Lookup(ctx context.Context, profileURL string) (*profile.Profile, error)
}

var profiles ProfileLookup

func InitProfileController(lookup ProfileLookup) {
	profiles = lookup
}

// LookupProfile resolves ?url= to name, job title, image and about text.
func LookupProfile(c *fiber.Ctx) error {
	result, err := profiles.Lookup(c.UserContext(), c.Query("url"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
