package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"contactbook_backend/internal/middleware"
	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/utils/jwt"
	"contactbook_backend/pkg/utils/validation"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=200"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// WelcomeMailer sends the registration greeting.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, email, name string) error
}

const welcomeEmailTimeout = 10 * time.Second

var (
	authDB     *gorm.DB
	authMailer WelcomeMailer
	authLog    = logger.Nop()
)

// InitAuthController wires the user store. mailer may be nil.
func InitAuthController(db *gorm.DB, mailer WelcomeMailer, log *logger.Logger) {
	authDB = db
	authMailer = mailer
	if log != nil {
		authLog = log
	}
}

func Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input, "invalid registration"); err != nil {
		return err
	}

	ctx := c.UserContext()
	var existing model.User
	err := authDB.WithContext(ctx).Select("id").Where("email = ?", input.Email).First(&existing).Error
	if err == nil {
		return apperror.Conflict("Email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.DataAccess(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Wrap(err, apperror.KindDataAccess, "Could not hash password")
	}

	user := model.User{
		Email:    input.Email,
		Password: string(hashedPassword),
		Name:     input.Name,
	}
	if err := authDB.WithContext(ctx).Create(&user).Error; err != nil {
		authLog.Error("Could not create user", "email", user.Email, "error", err)
		return apperror.DataAccess(err)
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return apperror.Wrap(err, apperror.KindDataAccess, "Could not generate token")
	}

	if authMailer != nil {
		go sendWelcome(user.Email, user.Name)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"user":    user.GetPublicProfile(),
	})
}

func sendWelcome(email, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), welcomeEmailTimeout)
	defer cancel()
	if err := authMailer.SendWelcomeEmail(ctx, email, name); err != nil {
		authLog.Warn("Welcome email failed", "email", email, "error", err)
	}
}

func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validation.Struct(input, "invalid credentials"); err != nil {
		return err
	}

	var user model.User
	err := authDB.WithContext(c.UserContext()).Where("email = ?", input.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Unauthorized("Invalid credentials")
		}
		return apperror.DataAccess(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return apperror.Unauthorized("Invalid credentials")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return apperror.Wrap(err, apperror.KindDataAccess, "Could not generate token")
	}

	entry := model.NewLoginHistory(user.ID, c.Get(fiber.HeaderUserAgent), c.IP())
	if err := authDB.WithContext(c.UserContext()).Create(&entry).Error; err != nil {
		authLog.Warn("Could not record login", "user_id", user.ID, "error", err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.GetPublicProfile(),
	})
}

// GetMe returns the signed-in user.
func GetMe(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	var user model.User
	if err := authDB.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.DataAccess(err)
	}

	return c.JSON(fiber.Map{"user": user.GetPublicProfile()})
}
