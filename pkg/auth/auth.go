// Package auth hashes passwords and issues and verifies the bearer tokens that carry a
// user's identity and role.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "storefront"

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID bson.ObjectID
	Role   models.Role
}

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Service) ComparePassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

func (s *Service) IssueToken(userID bson.ObjectID, role models.Role) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) Verify(token string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &Identity{UserID: userID, Role: claims.Role}, nil
}

// Authorize reports whether role is one of required.
func Authorize(role models.Role, required ...models.Role) bool {
	return slices.Contains(required, role)
}
