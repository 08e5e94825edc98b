package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner mints a bearer token for the authenticated admin.
type TokenSigner func(email string, ttl time.Duration) (string, error)

// AuthService authenticates the single configured admin account. Credentials
// come from the environment (email + bcrypt password hash); there is no user
// table because the submission endpoint itself is unauthenticated.
type AuthService struct {
	adminEmail string
	adminHash  []byte
	signToken  TokenSigner
	tokenTTL   time.Duration
}

type AuthResult struct {
	Token string
	Email string
}

func NewAuthService(adminEmail, adminHash string, signer TokenSigner) *AuthService {
	return &AuthService{
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		adminHash:  []byte(strings.TrimSpace(adminHash)),
		signToken:  signer,
		tokenTTL:   12 * time.Hour,
	}
}

// Enabled reports whether admin credentials are configured at all.
func (s *AuthService) Enabled() bool {
	return s.adminEmail != "" && len(s.adminHash) > 0
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if !s.Enabled() {
		return nil, NewUnavailableError("admin access not configured")
	}
	if email != s.adminEmail {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Email: email}, nil
}

func (s *AuthService) TokenTTL() time.Duration { return s.tokenTTL }
