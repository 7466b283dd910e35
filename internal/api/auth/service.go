package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/leadintake/internal/contractors"
	"github.com/leadintake/pkg/models"
)

// MinPasswordLength is the shortest password Register accepts
const MinPasswordLength = 8

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ContractorStore is the persistence Service needs
type ContractorStore interface {
	Create(ctx context.Context, name *string, email, passwordHash string) (*models.Contractor, error)
	GetByEmail(ctx context.Context, email string) (*models.Contractor, error)
}

// Service registers contractors and manages their sessions
type Service struct {
	store  ContractorStore
	tokens *TokenService

	// BcryptCost is the hashing cost for new passwords. Default: bcrypt.DefaultCost
	BcryptCost int
}

func NewService(store ContractorStore, tokens *TokenService) *Service {
	return &Service{store: store, tokens: tokens, BcryptCost: bcrypt.DefaultCost}
}

// Tokens exposes the session validator for middleware
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a contractor account with a hashed password
func (s *Service) Register(ctx context.Context, name *string, email, password string) (*models.Contractor, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email is not valid", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}

	hash, err := hashPassword(password, s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	c, err := s.store.Create(ctx, name, email, hash)
	if errors.Is(err, contractors.ErrDuplicateEmail) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create contractor: %w", err)
	}

	log.Info().Int64("contractor_id", c.ID).Msg("Contractor registered")
	return c, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*IssuedToken, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	c, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, contractors.ErrNotFound) {
		burnCompare(password, s.BcryptCost)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contractor: %w", err)
	}

	if !comparePasswords(c.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(c.ID)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("contractor_id", c.ID).Msg("Contractor logged in")
	return tok, nil
}

// Logout revokes the presented token
func (s *Service) Logout(token string) error {
	return s.tokens.Revoke(token)
}
