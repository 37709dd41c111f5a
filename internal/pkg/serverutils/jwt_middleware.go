package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// BearerToken reads the token from the Authorization header, or from the
// "token" query parameter for browser websocket handshakes
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// ParseToken validates an HMAC-signed token and returns its subject
func ParseToken(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid claims")
	}
	return sub, nil
}

// JwtMiddleware guards routes when a secret is configured; with an empty
// secret every request passes.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}
		sub, err := ParseToken(tokenStr, secret)
		if err != nil {
			return err
		}
		ctx.Locals("user_id", sub)
		return ctx.Next()
	}
}
