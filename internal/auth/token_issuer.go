package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// LoginAudience is the aud claim of tokens obtained with email and password
const LoginAudience = "foodgram-web"

// IssuedToken is a signed access token and its lifetime
type IssuedToken struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenIssuer signs access tokens for users who logged in with a password
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token carrying the user's id and role
func (i *TokenIssuer) Issue(user *models.User) (*IssuedToken, error) {
	if user == nil || user.ID == 0 {
		return nil, fmt.Errorf("cannot issue token for an unsaved user")
	}
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	issuedAt := i.now()
	claims := accessClaims(strconv.FormatUint(uint64(user.ID), 10), role, LoginAudience, issuedAt, issuedAt.Add(i.ttl))
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &IssuedToken{AccessToken: signed, ExpiresIn: i.ttl}, nil
}
