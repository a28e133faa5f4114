package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tracklog/apiserver/config"
)

const (
	ClaimSubject    = "sub"
	ClaimExpiration = "exp"
	ClaimIssuedAt   = "iat"

	defaultTokenTTL = 30 * time.Minute
)

// ErrInvalidToken covers every reason a token can be rejected: bad signature,
// undecodable structure, wrong algorithm, missing or past expiration.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the flat claim set carried by a bearer token.
type Claims map[string]string

// TokenCodec issues and verifies signed, expiring bearer tokens. Its secret
// and algorithm are fixed at construction and never change afterwards.
type TokenCodec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec constructs a codec from the auth configuration.
func NewTokenCodec(cfg config.AuthConfig) (*TokenCodec, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &TokenCodec{
		secret:     []byte(secret),
		method:     method,
		defaultTTL: ttl,
		now:        time.Now,
	}, nil
}

// Issue signs claims with an expiration of now+ttl. A zero ttl uses the
// configured default; a negative ttl produces an already expired token.
func (c *TokenCodec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	mapClaims := make(jwt.MapClaims, len(claims)+2)
	for key, value := range claims {
		mapClaims[key] = value
	}
	mapClaims[ClaimIssuedAt] = jwt.NewNumericDate(now)
	mapClaims[ClaimExpiration] = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(c.method, mapClaims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueForUser issues a default-lifetime token whose subject is the user id.
func (c *TokenCodec) IssueForUser(userID int64) (string, error) {
	return c.Issue(Claims{ClaimSubject: strconv.FormatInt(userID, 10)}, 0)
}

// Verify checks the signature and expiration of token and returns its claims,
// expiration included.
func (c *TokenCodec) Verify(token string) (Claims, error) {
	mapClaims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		mapClaims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims := make(Claims, len(mapClaims))
	for key, value := range mapClaims {
		claims[key] = claimString(value)
	}
	return claims, nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", alg)
	}
}

func claimString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
