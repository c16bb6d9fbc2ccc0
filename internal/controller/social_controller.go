package controller

import (
	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/social"
	"contactbook_backend/pkg/utils/validation"
)

type SocialNetworkInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

var registry *social.Registry

func InitSocialController(r *social.Registry) {
	registry = r
}

func ListSocialNetworks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"networks": registry.List()})
}

// AddSocialNetwork registers a platform. Known platforms answer 200.
func AddSocialNetwork(c *fiber.Ctx) error {
	input := new(SocialNetworkInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	input.Name = social.Normalize(input.Name)
	if err := validation.Struct(input, "invalid social network"); err != nil {
		return err
	}

	status := fiber.StatusOK
	if registry.Add(input.Name) {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"name": input.Name, "networks": registry.List()})
}
