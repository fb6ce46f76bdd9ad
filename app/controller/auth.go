package controller

import (
	"errors"
	"net/http"
	"time"

	httpdto "github.com/linkloop/auth-service/app/dto/http"
	"github.com/linkloop/auth-service/app/service"
	"github.com/linkloop/auth-service/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	OAuthStateCookie   = "oauth_state"
)

type AuthController struct {
	authService service.AuthService
	issuer      *service.TokenIssuer
	cfg         *config.Config
}

func NewAuthController(authService service.AuthService, issuer *service.TokenIssuer, cfg *config.Config) *AuthController {
	return &AuthController{authService: authService, issuer: issuer, cfg: cfg}
}

func (c *AuthController) Register(ctx echo.Context) error {
	req, err := httpdto.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.authService.Register(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Register failed: email already in use")
			return ctx.JSON(http.StatusConflict, httpdto.Fail("email already in use"))
		}
		if errors.Is(err, service.ErrWeakPassword) {
			logrus.WithField("email", req.Email).Warn("Register failed: weak password")
			return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	logrus.WithFields(logrus.Fields{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, httpdto.OK("registration successful, please verify your email"))
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := httpdto.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	session, err := c.authService.Login(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, httpdto.Fail("invalid email or password"))
		}
		if errors.Is(err, service.ErrWrongProvider) {
			logrus.WithField("email", req.Email).Warn("Login failed: oauth-only account")
			return ctx.JSON(http.StatusBadRequest, httpdto.Fail("this account signs in with Google"))
		}
		if errors.Is(err, service.ErrNotVerified) {
			logrus.WithField("email", req.Email).Warn("Login failed: email not verified")
			return ctx.JSON(http.StatusForbidden, httpdto.Fail("please verify your email before logging in"))
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	c.setSessionCookies(ctx, session.AccessToken, session.AccessTTL, session.RefreshToken, session.RefreshTTL)

	logrus.WithField("user_id", session.User.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.SessionResponse{
		Success: true,
		Message: "logged in successfully",
		User:    httpdto.NewUserPayload(session.User),
	})
}

func (c *AuthController) VerifyEmail(ctx echo.Context) error {
	token := ctx.Param("token")
	if token == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("verification token is required"))
	}

	logrus.Info("Verify email request received")
	session, err := c.authService.VerifyEmail(ctx.Request().Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Verify email failed: invalid or expired token")
			return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid or expired verification token"))
		}
		logrus.WithError(err).Error("Verify email failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	c.setSessionCookies(ctx, session.AccessToken, session.AccessTTL, session.RefreshToken, session.RefreshTTL)

	logrus.WithField("user_id", session.User.ID).Info("Email verified")
	return ctx.JSON(http.StatusOK, httpdto.SessionResponse{
		Success: true,
		Message: "email verified successfully",
		User:    httpdto.NewUserPayload(session.User),
	})
}

func (c *AuthController) RefreshToken(ctx echo.Context) error {
	cookie, err := ctx.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		logrus.Debug("Refresh failed: missing refresh token cookie")
		return ctx.JSON(http.StatusUnauthorized, httpdto.Fail("refresh token missing"))
	}

	token, err := c.authService.Refresh(ctx.Request().Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Refresh failed: invalid or expired refresh token")
			return ctx.JSON(http.StatusUnauthorized, httpdto.Fail("invalid or expired refresh token"))
		}
		logrus.WithError(err).Error("Refresh failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	c.setCookie(ctx, AccessTokenCookie, token.Token, token.TTL)

	logrus.Info("Access token refreshed")
	return ctx.JSON(http.StatusOK, httpdto.OK("access token refreshed"))
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	req, err := httpdto.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
	}

	logrus.WithField("email", req.Email).Info("Password reset requested")
	err = c.authService.ForgotPassword(ctx.Request().Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		logrus.WithError(err).WithField("email", req.Email).Error("Forgot password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	// Identical body whether or not the address exists.
	return ctx.JSON(http.StatusOK, httpdto.OK("if an account exists for that email, a reset link has been sent"))
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	token := ctx.Param("token")
	if token == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("reset token is required"))
	}

	req, err := httpdto.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
	}

	logrus.Info("Reset password request received")
	err = c.authService.ResetPassword(ctx.Request().Context(), token, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Reset password failed: invalid or expired token")
			return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid or expired reset token"))
		}
		if errors.Is(err, service.ErrWeakPassword) {
			logrus.Warn("Reset password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, httpdto.OK("password reset successfully"))
}

func (c *AuthController) ResendVerification(ctx echo.Context) error {
	req, err := httpdto.NewResendVerificationRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind resend verification request")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail("invalid request body"))
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Resend verification validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.Fail(err.Error()))
	}

	logrus.WithField("email", req.Email).Info("Resend verification requested")
	err = c.authService.ResendVerification(ctx.Request().Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrUserNotFound) && !errors.Is(err, service.ErrAlreadyVerified) {
		logrus.WithError(err).WithField("email", req.Email).Error("Resend verification failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	// Identical body whether or not the address exists or is already verified.
	return ctx.JSON(http.StatusOK, httpdto.OK("if an unverified account exists for that email, a new link has been sent"))
}

func (c *AuthController) Logout(ctx echo.Context) error {
	if cookie, err := ctx.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		// Best effort: a failed revoke never fails the response.
		if err := c.authService.Logout(ctx.Request().Context(), cookie.Value); err != nil {
			logrus.WithError(err).Error("Logout: refresh token revoke failed")
		}
	}

	c.clearCookie(ctx, AccessTokenCookie)
	c.clearCookie(ctx, RefreshTokenCookie)

	logrus.Info("Logout successful")
	return ctx.JSON(http.StatusOK, httpdto.OK("logged out successfully"))
}

func (c *AuthController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Me failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.Fail("unauthorized"))
	}

	user, err := c.authService.Identity(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusUnauthorized, httpdto.Fail("unauthorized"))
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Identity lookup failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Fail("internal server error"))
	}

	return ctx.JSON(http.StatusOK, httpdto.MeResponse{
		Authenticated: true,
		User:          httpdto.NewUserPayload(user),
	})
}

func (c *AuthController) GoogleStart(ctx echo.Context) error {
	if !c.cfg.OAuth.Google.Enabled() {
		logrus.Warn("Google OAuth start: provider not configured")
		return c.oauthErrorRedirect(ctx, "oauth_failed")
	}

	state, err := c.issuer.NewOpaqueToken(service.OAuthStateBytes)
	if err != nil {
		logrus.WithError(err).Error("Google OAuth start: state generation failed")
		return c.oauthErrorRedirect(ctx, "oauth_failed")
	}

	c.setCookie(ctx, OAuthStateCookie, state, c.cfg.Tokens.StateTTL)
	return ctx.Redirect(http.StatusFound, c.authService.GoogleAuthURL(state))
}

func (c *AuthController) GoogleCallback(ctx echo.Context) error {
	code := ctx.QueryParam("code")
	if code == "" {
		logrus.Warn("Google OAuth callback: missing code")
		return c.oauthErrorRedirect(ctx, "missing_code")
	}

	// State must match the cookie before any provider round trip.
	stateCookie, err := ctx.Cookie(OAuthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != ctx.QueryParam("state") {
		logrus.Warn("Google OAuth callback: state mismatch")
		return c.oauthErrorRedirect(ctx, "state_mismatch")
	}
	c.clearCookie(ctx, OAuthStateCookie)

	session, err := c.authService.GoogleCallback(ctx.Request().Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTakenByLocal):
			logrus.Warn("Google OAuth callback: email registered with password account")
			return c.oauthErrorRedirect(ctx, "email_exists")
		case errors.Is(err, service.ErrEmailNotVerifiedUpstream):
			logrus.Warn("Google OAuth callback: provider email unverified")
			return c.oauthErrorRedirect(ctx, "email_not_verified")
		default:
			logrus.WithError(err).Error("Google OAuth callback failed")
			return c.oauthErrorRedirect(ctx, "oauth_failed")
		}
	}

	c.setSessionCookies(ctx, session.AccessToken, session.AccessTTL, session.RefreshToken, session.RefreshTTL)

	logrus.WithField("user_id", session.User.ID).Info("Google login successful")
	return ctx.Redirect(http.StatusFound, c.cfg.Frontend.BaseURL)
}

func (c *AuthController) oauthErrorRedirect(ctx echo.Context, code string) error {
	return ctx.Redirect(http.StatusFound, c.cfg.Frontend.BaseURL+"/login?error="+code)
}

func (c *AuthController) setSessionCookies(ctx echo.Context, accessToken string, accessTTL time.Duration, refreshToken string, refreshTTL time.Duration) {
	c.setCookie(ctx, AccessTokenCookie, accessToken, accessTTL)
	c.setCookie(ctx, RefreshTokenCookie, refreshToken, refreshTTL)
}

// Cookies are cross-origin (SPA on a different host), hence SameSite=None
// with Secure.
func (c *AuthController) setCookie(ctx echo.Context, name, value string, ttl time.Duration) {
	ctx.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.cfg.Cookies.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.Cookies.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (c *AuthController) clearCookie(ctx echo.Context, name string) {
	ctx.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.cfg.Cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.Cookies.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}
