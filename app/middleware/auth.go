package middleware

import (
	"net/http"

	httpdto "github.com/linkloop/auth-service/app/dto/http"
	"github.com/linkloop/auth-service/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type accessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*service.Claims, error)
}

type AuthMiddleware struct {
	authService accessTokenVerifier
}

func NewAuthMiddleware(authService accessTokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// RequireAuth reads the access token cookie, verifies signature and expiry,
// and stores the subject id in the request context.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie("accessToken")
		if err != nil || cookie.Value == "" {
			logrus.Debug("Missing access token cookie")
			return c.JSON(http.StatusUnauthorized, httpdto.Fail("unauthorized"))
		}

		claims, err := m.authService.VerifyAccessToken(cookie.Value)
		if err != nil {
			logrus.Debug("Invalid or expired access token")
			return c.JSON(http.StatusUnauthorized, httpdto.Fail("unauthorized"))
		}

		c.Set("user_id", claims.UserID)

		return next(c)
	}
}
