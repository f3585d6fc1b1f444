package middlewares

import (
	t_token "school_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware resolves the caller from a JWT found in the Authorization
// header, the auth query parameter (websocket upgrades) or the auth_token cookie.
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := t_token.TrimBearer(c.Get(fiber.HeaderAuthorization))
		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return unauthorized(c, "Missing token")
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return unauthorized(c, "Invalid token")
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

// MemberID returns the caller id set by JWTMiddleware.
func MemberID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(TokenMemberID).(string)
	return id, ok && id != ""
}

// Role returns the caller role set by JWTMiddleware.
func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(TokenRole).(string)
	return role
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"code":    "unauthorized",
		"error":   msg,
	})
}
