package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mallhive/mallhive-backend/internal/users"
	pkgauth "github.com/mallhive/mallhive-backend/pkg/auth"
	"github.com/mallhive/mallhive-backend/pkg/config"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
)

// fakeLimiter is an in-memory fixed-window counter keyed by scope.
type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (l *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[scope]++
	return l.counts[scope] <= limit, l.counts[scope], nil
}

type fixture struct {
	svc     Service
	db      *gorm.DB
	limiter *fakeLimiter
	jwtCfg  config.JWTConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "mallhive-test", ExpirationMinutes: 15}
	// Low argon cost keeps the suite fast.
	pwCfg := config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	limitCfg := config.AuthRateLimitConfig{
		LoginWindow: time.Minute, LoginEmailLimit: 3, LoginIPLimit: 10,
		RegisterWindow: time.Minute, RegisterEmailLimit: 2, RegisterIPLimit: 10,
	}
	limiter := newFakeLimiter()
	logg := logger.New(logger.Options{ServiceName: "auth-test", Level: zerolog.Disabled})

	svc, err := NewService(ServiceParams{
		UserRepo:     users.NewRepository(db),
		RateLimiter:  limiter,
		JWTConfig:    jwtCfg,
		PasswordCfg:  pwCfg,
		RateLimitCfg: limitCfg,
		Logger:       logg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, db: db, limiter: limiter, jwtCfg: jwtCfg}
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, RegisterInput{
		Email:     "Ada@Example.com",
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", session.User.Email)
	}
	if session.User.Role != enums.UserRoleShopper {
		t.Fatalf("public registration must produce shoppers, got %s", session.User.Role)
	}

	claims, err := pkgauth.ParseAccessToken(f.jwtCfg, session.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != session.User.ID || claims.Role != enums.UserRoleShopper {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	login, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse", ClientIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be stamped")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	input := RegisterInput{Email: "dup@example.com", Password: "password1", FirstName: "A", LastName: "B", ClientIP: "10.0.0.2"}

	if _, err := f.svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := f.svc.Register(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, RegisterInput{
		Email: "sam@example.com", Password: "password1", FirstName: "S", LastName: "M", ClientIP: "10.0.0.3",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := f.svc.Login(ctx, LoginInput{Email: "sam@example.com", Password: "wrong", ClientIP: "10.0.0.3"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}

	_, err = f.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever", ClientIP: "10.0.0.3"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, RegisterInput{
		Email: "off@example.com", Password: "password1", FirstName: "O", LastName: "F", ClientIP: "10.0.0.4",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.db.Model(&models.User{}).Where("email = ?", "off@example.com").
		UpdateColumn("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.svc.Login(ctx, LoginInput{Email: "off@example.com", Password: "password1", ClientIP: "10.0.0.4"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	var err error
	for range 4 {
		_, err = f.svc.Login(ctx, LoginInput{Email: "burst@example.com", Password: "nope", ClientIP: "10.0.0.5"})
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit after burst, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "", Password: "password1", ClientIP: "10.0.0.6"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}

	_, err = f.svc.Register(ctx, RegisterInput{Email: "short@example.com", Password: "short", ClientIP: "10.0.0.6"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
}
