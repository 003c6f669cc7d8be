package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLocalAuthDisabled  = errors.New("local auth disabled")
)

type ServiceConfig struct {
	JWTSecret       string
	Issuer          string
	TokenTTL        time.Duration
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string
	Now             func() time.Time
}

type Service struct {
	secret          []byte
	issuer          string
	tokenTTL        time.Duration
	enableLocalAuth bool
	adminUser       string
	adminPassHash   []byte
	now             func() time.Time
}

type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = "psikoadmin"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		secret:          []byte(cfg.JWTSecret),
		issuer:          cfg.Issuer,
		tokenTTL:        cfg.TokenTTL,
		enableLocalAuth: cfg.EnableLocalAuth,
		adminUser:       strings.TrimSpace(cfg.AdminUser),
		adminPassHash:   []byte(cfg.AdminPassHash),
		now:             cfg.Now,
	}
}

func (s *Service) Issue(p Principal) (string, time.Time, error) {
	if strings.TrimSpace(p.Subject) == "" || !IsValidRole(p.Role) {
		return "", time.Time{}, fmt.Errorf("issue token: %w", ErrInvalidCredentials)
	}
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		Role: p.Role,
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Service) Verify(token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(s.secret) == 0 {
		return nil, ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" || !IsValidRole(claims.Role) {
		return nil, ErrUnauthorized
	}
	return &Principal{Subject: claims.Subject, Role: claims.Role, Name: claims.Name}, nil
}

// AuthenticateLocal checks the single configured operator account. It only
// exists for offline deployments without an identity provider.
func (s *Service) AuthenticateLocal(username, password string) (*Principal, error) {
	if !s.enableLocalAuth {
		return nil, ErrLocalAuthDisabled
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" || s.adminUser == "" || len(s.adminPassHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if username != s.adminUser {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.adminPassHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Principal{Subject: username, Role: RoleAdmin, Name: username}, nil
}
