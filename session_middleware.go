package dirauth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

const sessionContextKey = "dirauth:session"

// ProtectedRoute returns middleware that rejects requests without a valid
// session token. The validated claims are stored on the request context for
// downstream handlers.
func ProtectedRoute(sessions *TokenService, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = defaultSessionErrorHandler
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := sessionTokenFromRequest(ctx)
			if raw == "" {
				return errorHandler(ctx, ErrTokenInvalid)
			}

			claims, err := sessions.Validate(raw)
			if err != nil {
				return errorHandler(ctx, err)
			}

			ctx.Set(sessionContextKey, claims)
			return next(ctx)
		}
	}
}

// SessionFromContext returns the claims stored by ProtectedRoute, or nil
// when the request carried no valid session.
func SessionFromContext(ctx router.Context) *SessionClaims {
	val := ctx.Get(sessionContextKey, nil)
	if claims, ok := val.(*SessionClaims); ok {
		return claims
	}
	return nil
}

// sessionTokenFromRequest reads the bearer token from the Authorization
// header, falling back to the session cookie.
func sessionTokenFromRequest(ctx router.Context) string {
	header := ctx.Header("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ctx.Cookies(sessionContextKey, "")
}

func defaultSessionErrorHandler(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusUnauthorized, router.ViewContext{
		"success": false,
		"message": "authentication required",
	})
}
