package dto

import (
	"time"

	"github.com/linkloop/auth-service/app/entity"
)

type RegisterResult struct {
	User *entity.User
	// VerifyToken is the raw single-use token; it leaves the process only
	// through the verification email, never through an API response.
	VerifyToken string
}

// Session carries a freshly minted token pair. The raw refresh token exists
// only here and in the response cookie; the ledger stores its hash.
type Session struct {
	AccessToken  string
	AccessTTL    time.Duration
	RefreshToken string
	RefreshTTL   time.Duration
	User         *entity.User
}

type AccessToken struct {
	Token string
	TTL   time.Duration
}
