package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linkloop/auth-service/app/dto"
	httpdto "github.com/linkloop/auth-service/app/dto/http"
	"github.com/linkloop/auth-service/app/entity"
	"github.com/linkloop/auth-service/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists               = errors.New("user already exists")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrNotVerified              = errors.New("email not verified")
	ErrWrongProvider            = errors.New("account uses a different sign-in provider")
	ErrInvalidToken             = errors.New("invalid or expired token")
	ErrWeakPassword             = errors.New("password does not meet policy requirements")
	ErrAlreadyVerified          = errors.New("email is already verified")
	ErrEmailTakenByLocal        = errors.New("email is registered with a password account")
	ErrEmailNotVerifiedUpstream = errors.New("provider reports email as unverified")
	ErrOAuthExchange            = errors.New("oauth code exchange failed")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByVerifyTokenHash(ctx context.Context, tokenHash string) (*entity.User, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}

type refreshTokenRepository interface {
	Create(ctx context.Context, token *entity.RefreshToken) error
	FindValidByHash(ctx context.Context, tokenHash string) (*entity.RefreshToken, error)
	RevokeByHash(ctx context.Context, tokenHash string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type AuthService interface {
	Register(ctx context.Context, req *httpdto.RegisterRequest) (*dto.RegisterResult, error)
	VerifyEmail(ctx context.Context, rawToken string) (*dto.Session, error)
	Login(ctx context.Context, req *httpdto.LoginRequest) (*dto.Session, error)
	Refresh(ctx context.Context, rawRefreshToken string) (*dto.AccessToken, error)
	Logout(ctx context.Context, rawRefreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResendVerification(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	Identity(ctx context.Context, userID uint64) (*entity.User, error)
	VerifyAccessToken(tokenString string) (*Claims, error)
	GoogleAuthURL(state string) string
	GoogleCallback(ctx context.Context, code string) (*dto.Session, error)
}

// AsyncRunner executes fire-and-forget work (outbound email). Tests inject
// a synchronous runner.
type AsyncRunner func(task func())

type AuthServiceOption func(*authService)

type authService struct {
	userRepo         userRepository
	refreshTokenRepo refreshTokenRepository
	issuer           *TokenIssuer
	mailer           Mailer
	google           GoogleProvider
	cfg              *config.Config
	asyncRunner      AsyncRunner
}

func NewAuthService(
	userRepo userRepository,
	refreshTokenRepo refreshTokenRepository,
	issuer *TokenIssuer,
	mailer Mailer,
	cfg *config.Config,
	opts ...AuthServiceOption,
) AuthService {
	svc := &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		issuer:           issuer,
		mailer:           mailer,
		google:           NewGoogleProvider(cfg.OAuth.Google),
		cfg:              cfg,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) AuthServiceOption {
	return func(s *authService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func WithGoogleProvider(provider GoogleProvider) AuthServiceOption {
	return func(s *authService) {
		if provider != nil {
			s.google = provider
		}
	}
}

func (s *authService) Register(ctx context.Context, req *httpdto.RegisterRequest) (*dto.RegisterResult, error) {
	email := entity.NormalizeEmail(req.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	if err = s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	rawToken, err := s.issuer.NewOpaqueToken(VerifyTokenBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := entity.NewLocalUser(email, req.FirstName, req.LastName, string(hashedPassword), now)
	user.VerifyTokenHash = nullString(HashToken(rawToken))
	user.VerifyTokenExpires = nullTime(now.Add(s.cfg.Tokens.VerifyTTL))

	if err = s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerificationEmail(user, rawToken)

	return &dto.RegisterResult{User: user, VerifyToken: rawToken}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, rawToken string) (*dto.Session, error) {
	user, err := s.userRepo.FindByVerifyTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.VerifyTokenExpires.Valid || user.VerifyTokenExpires.Time.Before(time.Now()) {
		return nil, ErrInvalidToken
	}

	user.IsEmailVerified = true
	user.VerifyTokenHash = nullStringEmpty()
	user.VerifyTokenExpires = nullTimeEmpty()

	if err = s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	// Verification always uses the short default lifetimes.
	return s.mintSession(ctx, user, false)
}

func (s *authService) Login(ctx context.Context, req *httpdto.LoginRequest) (*dto.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsLocal() {
		return nil, ErrWrongProvider
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsEmailVerified {
		return nil, ErrNotVerified
	}

	return s.mintSession(ctx, user, req.RememberMe)
}

func (s *authService) Refresh(ctx context.Context, rawRefreshToken string) (*dto.AccessToken, error) {
	token, err := s.refreshTokenRepo.FindValidByHash(ctx, HashToken(rawRefreshToken))
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	// The presented refresh token stays valid; only a fresh access token is
	// minted.
	accessToken, ttl, err := s.issuer.MintAccessToken(user.ID, false)
	if err != nil {
		return nil, err
	}

	return &dto.AccessToken{Token: accessToken, TTL: ttl}, nil
}

func (s *authService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	_, err := s.refreshTokenRepo.RevokeByHash(ctx, HashToken(rawRefreshToken))
	return err
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	// A non-local account has no password to reset; treat it like an
	// unknown address so the response stays enumeration-safe.
	if user == nil || !user.IsLocal() {
		return ErrUserNotFound
	}

	rawToken, err := s.issuer.NewOpaqueToken(ResetTokenBytes)
	if err != nil {
		return err
	}

	// Overwriting the stored hash implicitly invalidates any prior token.
	user.ResetTokenHash = nullString(HashToken(rawToken))
	user.ResetTokenExpires = nullTime(time.Now().Add(s.cfg.Tokens.ResetTTL))

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.cfg.Frontend.BaseURL, rawToken)
	s.asyncRunner(func() {
		if sendErr := s.mailer.SendPasswordResetEmail(user.Email, user.FirstName, resetURL); sendErr != nil {
			logrus.WithError(sendErr).WithField("user_id", user.ID).Error("failed to send password reset email")
		}
	})

	return nil
}

func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	rawToken, err := s.issuer.NewOpaqueToken(VerifyTokenBytes)
	if err != nil {
		return err
	}

	user.VerifyTokenHash = nullString(HashToken(rawToken))
	user.VerifyTokenExpires = nullTime(time.Now().Add(s.cfg.Tokens.VerifyTTL))

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.sendVerificationEmail(user, rawToken)
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.userRepo.FindByResetTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}
	if !user.ResetTokenExpires.Valid || user.ResetTokenExpires.Time.Before(time.Now()) {
		return ErrInvalidToken
	}

	if err = s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = nullString(string(hashedPassword))
	user.ResetTokenHash = nullStringEmpty()
	user.ResetTokenExpires = nullTimeEmpty()

	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	// A reset ends every outstanding session for the account.
	return s.refreshTokenRepo.RevokeAllForUser(ctx, user.ID)
}

func (s *authService) Identity(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.issuer.VerifyAccessToken(tokenString)
}

func (s *authService) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

func (s *authService) GoogleCallback(ctx context.Context, code string) (*dto.Session, error) {
	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOAuthExchange, err.Error())
	}
	if !profile.EmailVerified {
		return nil, ErrEmailNotVerifiedUpstream
	}

	user, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, err
	}

	switch {
	case user == nil:
		firstName := profile.FirstName
		if firstName == "" {
			firstName = profile.Email
		}
		user = entity.NewGoogleUser(profile.Email, firstName, profile.LastName, profile.ID, time.Now())
		if err = s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	case user.IsLocal():
		return nil, ErrEmailTakenByLocal
	}

	// OAuth logins always use the short default lifetimes.
	return s.mintSession(ctx, user, false)
}

func (s *authService) mintSession(ctx context.Context, user *entity.User, extended bool) (*dto.Session, error) {
	accessToken, accessTTL, err := s.issuer.MintAccessToken(user.ID, extended)
	if err != nil {
		return nil, err
	}

	rawRefresh, err := s.issuer.NewOpaqueToken(RefreshTokenBytes)
	if err != nil {
		return nil, err
	}

	refreshTTL := s.cfg.Refresh.TTL
	if extended {
		refreshTTL = s.cfg.Refresh.ExtendedTTL
	}

	now := time.Now()
	record := &entity.RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(rawRefresh),
		ExpiresAt: now.Add(refreshTTL),
		CreatedAt: now,
	}
	if err = s.refreshTokenRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return &dto.Session{
		AccessToken:  accessToken,
		AccessTTL:    accessTTL,
		RefreshToken: rawRefresh,
		RefreshTTL:   refreshTTL,
		User:         user,
	}, nil
}

func (s *authService) sendVerificationEmail(user *entity.User, rawToken string) {
	verifyURL := fmt.Sprintf("%s/verify-email/%s", s.cfg.Frontend.BaseURL, rawToken)
	email := user.Email
	firstName := user.FirstName
	userID := user.ID
	s.asyncRunner(func() {
		if sendErr := s.mailer.SendVerificationEmail(email, firstName, verifyURL); sendErr != nil {
			logrus.WithError(sendErr).WithField("user_id", userID).Error("failed to send verification email")
		}
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nullStringEmpty() sql.NullString {
	return sql.NullString{}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimeEmpty() sql.NullTime {
	return sql.NullTime{}
}
