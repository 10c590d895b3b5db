package auth // package auth implements credential hashing and the dual-token issuer

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token verification failures.  Expired is distinguished from invalid so
// clients can decide whether to attempt a refresh or force a re-login.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrWrongTokenType = errors.New("wrong token type")
)

// tokenTypeRefresh is the discriminator carried by refresh tokens so a
// refresh token can never be accepted where an access token is required
// (and vice versa), even though both are HS256 JWTs under the same secret.
const tokenTypeRefresh = "refresh"

// Claims is the identity payload embedded in both token kinds.  It is
// trusted only for the request's duration: the middleware re-resolves the
// user from the store on every protected call.
type Claims struct {
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type,omitempty"` // "refresh" on refresh tokens, absent on access tokens
	jwt.RegisteredClaims
}

// Config carries the signing parameters injected at construction.  The
// secret is shared between both token kinds; rotating it invalidates all
// outstanding tokens at once.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Pair bundles a freshly minted access/refresh token pair.  The refresh
// expiry is returned so the caller can persist it in the session ledger.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies signed tokens.  The clock is injectable for
// tests.
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

// IssuePair mints a short-lived access token and a long-lived refresh
// token carrying the same identity claims plus the refresh discriminator.
func (i *Issuer) IssuePair(userID uint64, email, role string) (Pair, error) {
	now := i.now().UTC()
	accessExp := now.Add(i.cfg.AccessTTL)
	refreshExp := now.Add(i.cfg.RefreshTTL)

	access, err := i.sign(userID, email, role, "", now, accessExp)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(userID, email, role, tokenTypeRefresh, now, refreshExp)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ReissueAccess mints a new access token only.  Used by the refresh flow,
// which must not touch the session ledger.
func (i *Issuer) ReissueAccess(userID uint64, email, role string) (string, error) {
	now := i.now().UTC()
	return i.sign(userID, email, role, "", now, now.Add(i.cfg.AccessTTL))
}

func (i *Issuer) sign(userID uint64, email, role, typ string, iat, exp time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(i.cfg.Secret))
}

// ParseAccess verifies a bearer access token.  Expired tokens map to
// ErrTokenExpired, anything structurally wrong to ErrTokenInvalid, and a
// refresh token presented as an access token to ErrWrongTokenType.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) {
	claims, err := i.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseRefresh verifies the structure of a refresh token.  Ledger presence
// and owner state are checked separately by the refresh flow; this only
// guarantees signature, expiry and the refresh discriminator.
func (i *Issuer) ParseRefresh(raw string) (*Claims, error) {
	claims, err := i.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (i *Issuer) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(i.cfg.Secret), nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
