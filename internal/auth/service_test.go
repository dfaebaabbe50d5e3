package auth

import (
	"context"
	"testing"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/davidnjeri/carhub-backend/internal/users"
)

type stubSessions struct {
	generated []string
	revoked   []string
}

func (s *stubSessions) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	return "rotated-" + oldAccessID, "refresh-rotated", nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubPlans struct {
	activated []enums.PlanID
	methods   []enums.PaymentMethod
}

func (s *stubPlans) Activate(_ context.Context, userID uuid.UUID, planID enums.PlanID, method enums.PaymentMethod, _ string) (*models.UserSubscription, error) {
	s.activated = append(s.activated, planID)
	s.methods = append(s.methods, method)
	return &models.UserSubscription{UserID: userID, PlanID: planID, PaymentMethod: method}, nil
}

func newAuthService(t *testing.T) (*Service, *stubSessions, *stubPlans) {
	t.Helper()

	client, err := db.NewWithDialector(sqlite.Open(":memory:"), config.DBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Gorm().AutoMigrate(&models.User{}))

	hasher := security.NewHasher(config.PasswordConfig{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	sessions := &stubSessions{}
	plans := &stubPlans{}
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	svc := NewService(
		users.NewRepository(client.Gorm()),
		hasher,
		sessions,
		plans,
		logger.New(logger.Options{ServiceName: "test"}),
		clk,
		config.JWTConfig{
			Secret: "test-secret", Issuer: "carhub-test",
			AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour,
		},
	)
	return svc, sessions, plans
}

func TestRegisterAndLogin(t *testing.T) {
	svc, sessions, plans := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "Jane@Example.com",
		Password: "hunter2hunter2",
		FullName: "Jane Wanjiku",
		Phone:    "0712345678",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.Equal(t, enums.RoleUser, user.Role)
	require.Equal(t, []enums.PlanID{enums.PlanFree}, plans.activated, "new accounts start on the free plan")

	loggedIn, pair, err := svc.Login(ctx, "jane@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, user.ID, loggedIn.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Len(t, sessions.generated, 1)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "hunter2hunter2", FullName: "A"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "DUP@example.com", Password: "hunter2hunter2", FullName: "B"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "hunter2hunter2", FullName: "A"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@example.com", "wrong-password")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever123")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestRegisterShortPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "x@example.com", Password: "short", FullName: "X"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "r@example.com", Password: "hunter2hunter2", FullName: "R"})
	require.NoError(t, err)

	_, pair, err := svc.Login(ctx, user.Email, "hunter2hunter2")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.Equal(t, "refresh-rotated", rotated.RefreshToken)
}
