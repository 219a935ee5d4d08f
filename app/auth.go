package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/auth"
	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/ports"
)

// ErrInvalidCredentials is returned on a failed login. The message is the
// same for unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates back-office operators and issues API tokens.
type AuthService struct {
	operators ports.OperatorStore
	hasher    ports.Hasher
	tokens    *auth.TokenService
	ids       ports.IDGenerator
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	operators ports.OperatorStore,
	hasher ports.Hasher,
	tokens *auth.TokenService,
	ids ports.IDGenerator,
	m *metrics.Collector,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		operators: operators,
		hasher:    hasher,
		tokens:    tokens,
		ids:       ids,
		metrics:   m,
		logger:    logger,
	}
}

// Session is an issued operator session.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Operator  ports.Operator
}

// Login verifies the operator's credentials and returns a signed session.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	op, err := s.operators.GetByEmail(ctx, email)
	if errors.Is(err, ports.ErrNotFound) {
		s.metrics.AuthFailures.WithLabelValues("unknown_email").Inc()
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if !s.hasher.Compare(op.PasswordHash, password) {
		s.metrics.AuthFailures.WithLabelValues("bad_password").Inc()
		s.logger.Warn().Str("email", email).Msg("login failed")
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateToken(op.ID, op.Email)
	if err != nil {
		return Session{}, err
	}

	s.logger.Info().Str("operator_id", op.ID).Msg("operator logged in")
	return Session{Token: token, ExpiresAt: expiresAt, Operator: op}, nil
}

// Validate checks a bearer token and returns its claims.
func (s *AuthService) Validate(token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.metrics.AuthFailures.WithLabelValues("bad_token").Inc()
		return nil, err
	}
	return claims, nil
}

// EnsureOperator creates the given operator when none exist yet, for
// first-run bootstrap. Does nothing on an already-initialized database.
func (s *AuthService) EnsureOperator(ctx context.Context, email, name, password string) error {
	count, err := s.operators.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	op := ports.Operator{
		ID:           s.ids.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return err
	}

	s.logger.Info().Str("email", email).Msg("initial operator created")
	return nil
}
