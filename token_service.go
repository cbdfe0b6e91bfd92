package dirauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SessionClaims is the JWT payload handed to clients after a successful login.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID    string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
	Handle string `json:"handle,omitempty"`
	Role   string `json:"role,omitempty"`
}

// TokenService mints and validates session tokens for authenticated users.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates a session token service from the shared config.
func NewTokenService(cfg Config) *TokenService {
	cfg = cfg.WithDefaults()
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		ttl:        cfg.SessionTokenTTL,
		now:        time.Now,
		logger:     defLogger{},
	}
}

func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// Generate mints a session token for the authenticated user.
func (ts *TokenService) Generate(user *AuthenticatedUser) (string, error) {
	if user == nil {
		return "", goerrors.New("authenticated user is required", goerrors.CategoryBadInput)
	}

	now := ts.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:    user.ID,
		Email:  user.Email,
		Handle: user.Handle,
		Role:   string(user.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Validate parses and validates a session token string.
func (ts *TokenService) Validate(raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session token has unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithTimeFunc(ts.now), jwt.WithIssuer(ts.issuer))

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		clone := ErrTokenInvalid.Clone()
		clone.Source = err
		return nil, clone
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
