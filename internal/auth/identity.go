package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

// ErrUnauthenticated is the single failure reported for every way a bearer
// token can fail to resolve to a user.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserLookup fetches a user by id. It returns store.ErrNotFound when absent.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
}

// IdentityResolver turns a bearer token into the authenticated user.
type IdentityResolver struct {
	codec *TokenCodec
	users UserLookup
}

func NewIdentityResolver(codec *TokenCodec, users UserLookup) *IdentityResolver {
	return &IdentityResolver{codec: codec, users: users}
}

// Resolve verifies token and loads its subject. Missing, invalid or expired
// tokens, bad subjects and unknown users all yield ErrUnauthenticated. Other
// lookup errors are returned wrapped so callers can tell a store outage apart.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (types.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.User{}, ErrUnauthenticated
	}

	claims, err := r.codec.Verify(token)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}

	userID, err := SubjectUserID(claims)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, fmt.Errorf("resolve identity: %w", err)
	}
	return user, nil
}

// SubjectUserID parses the subject claim as a positive user id.
func SubjectUserID(claims Claims) (int64, error) {
	subject, ok := claims[ClaimSubject]
	if !ok || strings.TrimSpace(subject) == "" {
		return 0, errors.New("missing subject")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(subject), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}
