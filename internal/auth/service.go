package auth

import (
	"context"
	"errors"

	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/internal/users"
	pkgauth "github.com/davidnjeri/carhub-backend/pkg/auth"
	"github.com/davidnjeri/carhub-backend/pkg/auth/session"
	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/security"
	"github.com/google/uuid"
)

// planActivator seeds new accounts onto the free plan.
type planActivator interface {
	Activate(ctx context.Context, userID uuid.UUID, planID enums.PlanID, method enums.PaymentMethod, paymentRef string) (*models.UserSubscription, error)
}

var _ planActivator = (*subscriptions.Service)(nil)

// sessionManager is the refresh session surface the auth flow needs.
type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

var _ sessionManager = (*session.Manager)(nil)

// Service handles registration, login, and session rotation.
type Service struct {
	repo     users.Repository
	hasher   *security.Hasher
	sessions sessionManager
	plans    planActivator
	logg     *logger.Logger
	clk      clock.Clock
	jwtCfg   config.JWTConfig
}

func NewService(
	repo users.Repository,
	hasher *security.Hasher,
	sessions sessionManager,
	plans planActivator,
	logg *logger.Logger,
	clk clock.Clock,
	jwtCfg config.JWTConfig,
) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		plans:    plans,
		logg:     logg,
		clk:      clk,
		jwtCfg:   jwtCfg,
	}
}

// RegisterInput carries the signup form fields.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates the account and starts it on the free plan.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	existing, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking email")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		Phone:        input.Phone,
		Role:         enums.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}

	if _, err := s.plans.Activate(ctx, user.ID, enums.PlanFree, enums.PaymentFree, ""); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "seeding free plan", err)
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return user, nil
}

// Login verifies credentials and mints an access/refresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if user == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	match, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !match {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user logged in")
	return user, pair, nil
}

// Refresh rotates the refresh token and mints a fresh access token.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotating session")
	}

	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.clk.Now(), pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &TokenPair{AccessToken: signed, RefreshToken: newRefresh}, nil
}

// Logout revokes the refresh session behind the presented access token.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoking session")
	}
	return nil
}

// Profile loads the authenticated user's account.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *Service) mintPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessID := session.NewAccessID()
	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.clk.Now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating refresh session")
	}

	return &TokenPair{AccessToken: signed, RefreshToken: refresh}, nil
}
