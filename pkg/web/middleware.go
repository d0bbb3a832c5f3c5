package web

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/keyauth"
)

const (
	// TenantHeader carries the tenant every request is scoped to.
	TenantHeader = "X-Tenant-ID"
	// UserHeader names the caller recorded as a workflow's creator.
	UserHeader = "X-User-ID"
)

const (
	tenantLocalKey = "tenant_id"
	maxHeaderValue = 255
)

// RequireTenant rejects requests without a tenant header.
func RequireTenant() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID := strings.TrimSpace(c.Get(TenantHeader))
		if tenantID == "" {
			return badRequest(c, TenantHeader+" header is required")
		}

		if len(tenantID) > maxHeaderValue {
			return badRequest(c, TenantHeader+" header must be at most 255 characters")
		}

		c.Locals(tenantLocalKey, tenantID)

		return c.Next()
	}
}

// RequireExecutor admits requests carrying "Authorization: Bearer <token>".
// With an empty token every request is refused.
func RequireExecutor(token string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(_ fiber.Ctx, key string) (bool, error) {
			if token == "" || subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
				return false, keyauth.ErrMissingOrMalformedAPIKey
			}

			return true, nil
		},
		ErrorHandler: func(c fiber.Ctx, _ error) error {
			return unauthorized(c, "executor credentials are required")
		},
	})
}

func tenantOf(c fiber.Ctx) string {
	tenantID, _ := c.Locals(tenantLocalKey).(string)

	return tenantID
}

func userOf(c fiber.Ctx) (string, bool) {
	userID := strings.TrimSpace(c.Get(UserHeader))

	return userID, len(userID) <= maxHeaderValue
}
