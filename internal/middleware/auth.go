package middleware

import (
	"crypto/subtle"
	"strings"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const identityKey = "identity"

func Auth(auth *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(401).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		id, err := auth.ValidateAccessToken(tokenString)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Identity returns the caller set by Auth.
func Identity(c *fiber.Ctx) model.Identity {
	id, _ := c.Locals(identityKey).(model.Identity)
	return id
}

// RequireStaff rejects callers that are not staff or admin.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Identity(c).Role.IsStaff() {
			return c.Status(403).JSON(fiber.Map{"error": "staff only"})
		}
		return c.Next()
	}
}

// AdminKey guards operator routes. expected may be the plain key or a bcrypt
// hash of it (see supportctl admin-key). An empty expected key disables
// the routes.
func AdminKey(expected string) fiber.Handler {
	hashed := isBcryptHash(expected)
	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Status(401).JSON(fiber.Map{"error": "admin routes disabled"})
		}
		key := c.Get("X-Admin-Key")
		if key == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing admin key"})
		}
		if !adminKeyMatches(expected, key, hashed) {
			return c.Status(403).JSON(fiber.Map{"error": "invalid admin key"})
		}
		return c.Next()
	}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func adminKeyMatches(expected, got string, hashed bool) bool {
	if hashed {
		return bcrypt.CompareHashAndPassword([]byte(expected), []byte(got)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
