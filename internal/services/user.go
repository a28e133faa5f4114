package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/tracklog/apiserver/internal/auth"
	"github.com/tracklog/apiserver/internal/store"
	"github.com/tracklog/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int64) error
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.RuneLength(3, 50)),
		validation.Field(&in.Email, validation.Required, validation.RuneLength(3, 100), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
	)
}

// LoginInput carries credentials plus client details recorded on success.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

// UserService encapsulates registration, login and account use-cases.
type UserService struct {
	repo     UserRepository
	hasher   *auth.PasswordHasher
	codec    *auth.TokenCodec
	recorder *ActivityRecorder

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(repo UserRepository, hasher *auth.PasswordHasher, codec *auth.TokenCodec, recorder *ActivityRecorder) *UserService {
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		codec:    codec,
		recorder: recorder,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrNotFound
	}
	return user, err
}

// Register creates an account and returns it with a freshly issued token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return types.User{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, "", fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", err
	}
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, "", fmt.Errorf("%w: username already taken", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, "", err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, "", fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return types.User{}, "", err
	}

	token, err := s.codec.IssueForUser(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, in LoginInput) (types.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return types.User{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_, _ = s.hasher.Verify(in.Password, s.placeholderHash())
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return types.User{}, "", err
	}
	if !ok {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.codec.IssueForUser(user.ID)
	if err != nil {
		return types.User{}, "", err
	}

	s.recorder.RecordLogin(ctx, user.ID, in.IPAddress, in.UserAgent)
	return user, token, nil
}

// Delete removes the account; its activities are removed by cascade.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *UserService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-password")
	})
	return s.dummyHash
}
