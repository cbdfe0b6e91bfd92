package dirauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPurpose tags a lifecycle token with the single state transition it
// authorizes. Tokens are never interchangeable across purposes.
type TokenPurpose string

const (
	// PurposeConfirmAccount authorizes flipping a profile to confirmed.
	PurposeConfirmAccount TokenPurpose = "confirm-account"
	// PurposeResetPassword authorizes rotating a directory credential.
	PurposeResetPassword TokenPurpose = "reset-password"
)

// SubjectClaims identifies the account a lifecycle token acts on.
type SubjectClaims struct {
	ID     string
	Handle string
	Email  string
	DN     string
}

// LifecycleClaims is the wire shape of confirmation and reset tokens. The
// encoding is a compact JWS, URL-safe for embedding in email links.
type LifecycleClaims struct {
	jwt.RegisteredClaims
	Purpose TokenPurpose `json:"purpose"`
	UID     string       `json:"uid,omitempty"`
	Handle  string       `json:"handle,omitempty"`
	Email   string       `json:"email,omitempty"`
	DN      string       `json:"dn,omitempty"`
}

// TokenIssuer issues and verifies signed, time-limited, purpose-tagged
// tokens driving profile state transitions.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	confirmTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
	logger     Logger
}

// NewTokenIssuer creates a TokenIssuer from the shared configuration.
func NewTokenIssuer(cfg Config) *TokenIssuer {
	cfg = cfg.WithDefaults()
	return &TokenIssuer{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		confirmTTL: cfg.ConfirmTokenTTL,
		resetTTL:   cfg.ResetTokenTTL,
		now:        time.Now,
		logger:     defLogger{},
	}
}

// WithClock injects a custom clock (useful for tests).
func (ti *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		ti.now = clock
	}
	return ti
}

func (ti *TokenIssuer) WithLogger(logger Logger) *TokenIssuer {
	if logger != nil {
		ti.logger = logger
	}
	return ti
}

// Issue signs a token for the given purpose and subject. A zero ttl uses
// the purpose default (24h for confirmation, 15m for reset).
func (ti *TokenIssuer) Issue(purpose TokenPurpose, subject SubjectClaims, ttl time.Duration) (string, time.Time, error) {
	if purpose != PurposeConfirmAccount && purpose != PurposeResetPassword {
		return "", time.Time{}, goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose})
	}

	if ttl == 0 {
		ttl = ti.defaultTTL(purpose)
	}
	if ttl < 0 {
		return "", time.Time{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	issuedAt := ti.now()
	expiresAt := issuedAt.Add(ttl)

	claims := &LifecycleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purpose,
		UID:     subject.ID,
		Handle:  subject.Handle,
		Email:   subject.Email,
		DN:      subject.DN,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign lifecycle token")
	}

	return signed, expiresAt, nil
}

// Verify checks signature, structure, purpose, and expiry. A token is valid
// strictly before its expiry instant and expired at or after it.
func (ti *TokenIssuer) Verify(raw string, expected TokenPurpose) (*LifecycleClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ti.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ti.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ti.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &LifecycleClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		clone := ErrTokenInvalid.Clone()
		clone.Source = err
		return nil, clone
	}

	claims, ok := token.Claims.(*LifecycleClaims)
	if !ok || !token.Valid {
		ti.logger.Error("token issuer could not decode validated claims")
		return nil, ErrTokenInvalid
	}

	if claims.Purpose != expected {
		ti.logger.Warn("token purpose mismatch", "expected", expected, "got", claims.Purpose)
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (ti *TokenIssuer) defaultTTL(purpose TokenPurpose) time.Duration {
	if purpose == PurposeResetPassword {
		return ti.resetTTL
	}
	return ti.confirmTTL
}
