package auth

import (
	"strings"

	"vienna-backend/internal/config"
	"vienna-backend/internal/database"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type CreateUserRequest struct {
	RegisterRequest
	Role models.UserRole `json:"role" validate:"required,oneof=admin staff"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

func createUser(c *fiber.Ctx, body RegisterRequest, role models.UserRole) error {
	email := strings.TrimSpace(strings.ToLower(body.Email))

	var count int64
	if err := database.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return httpx.Fail("auth", "createUser", err, "could not check the email")
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "a user with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not hash the password")
	}

	user := models.User{
		Name:         strings.TrimSpace(body.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return httpx.Fail("auth", "createUser", err, "could not create the user")
	}

	logging.GetLogger().WithField("user_id", user.ID).Infof("user created with role %s", role)
	return c.Status(fiber.StatusCreated).JSON(userJSON(&user))
}

// POST /api/auth/register-admin, open only until the first admin exists.
func RegisterAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var count int64
		if err := database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
			return httpx.Fail("auth", "RegisterAdminHandler", err, "could not check existing admins")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "an admin already exists")
		}

		return createUser(c, body, models.RoleAdmin)
	}
}

// POST /api/auth/users (admin)
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		return createUser(c, body.RegisterRequest, body.Role)
	}
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create the token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  userJSON(&user),
		})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)

		var user models.User
		if err := database.DB.First(&user, actor.UserID).Error; err == nil {
			return c.JSON(userJSON(&user))
		}

		// Session is still valid when the row cannot be read.
		return c.JSON(fiber.Map{
			"id":   actor.UserID,
			"name": actor.Name,
			"role": actor.Role,
		})
	}
}
