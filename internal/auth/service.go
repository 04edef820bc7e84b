package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/mallhive/mallhive-backend/internal/users"
	pkgauth "github.com/mallhive/mallhive-backend/pkg/auth"
	"github.com/mallhive/mallhive-backend/pkg/config"
	"github.com/mallhive/mallhive-backend/pkg/db"
	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/security"
)

// Failed logins and missing accounts share one message so the response does
// not reveal which emails exist.
const invalidCredentialsMessage = "invalid credentials"

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service handles registration and login.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, input LoginInput) (*Session, error)
}

type service struct {
	users    users.Repository
	limiter  rateLimiter
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	limitCfg config.AuthRateLimitConfig
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo     users.Repository
	RateLimiter  rateLimiter
	JWTConfig    config.JWTConfig
	PasswordCfg  config.PasswordConfig
	RateLimitCfg config.AuthRateLimitConfig
	Logger       *logger.Logger
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.RateLimiter == nil {
		return nil, fmt.Errorf("rate limiter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		users:    params.UserRepo,
		limiter:  params.RateLimiter,
		jwtCfg:   params.JWTConfig,
		pwCfg:    params.PasswordCfg,
		limitCfg: params.RateLimitCfg,
		logg:     params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email := users.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	if err := s.allow(ctx, "register:email:"+email, int64(s.limitCfg.RegisterEmailLimit), s.limitCfg.RegisterWindow); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "register:ip:"+input.ClientIP, int64(s.limitCfg.RegisterIPLimit), s.limitCfg.RegisterWindow); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         enums.UserRoleShopper,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return s.startSession(ctx, user)
}

func (s *service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	email := users.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	if err := s.allow(ctx, "login:email:"+email, int64(s.limitCfg.LoginEmailLimit), s.limitCfg.LoginWindow); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "login:ip:"+input.ClientIP, int64(s.limitCfg.LoginIPLimit), s.limitCfg.LoginWindow); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logg.Error(ctx, "recording last login", err)
	} else {
		user.LastLoginAt = &now
	}

	return s.startSession(ctx, user)
}

func (s *service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		ShopID: user.ShopID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting token")
	}
	return &Session{Token: token, User: summarize(user)}, nil
}

// allow consumes one slot in the scope's fixed window. A limiter outage fails
// open: login availability beats strict throttling.
func (s *service) allow(ctx context.Context, scope string, limit int64, window time.Duration) error {
	if limit <= 0 || window <= 0 {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, scope, limit, window)
	if err != nil {
		s.logg.Error(ctx, "rate limiter check failed", err)
		return nil
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, retry later")
	}
	return nil
}
