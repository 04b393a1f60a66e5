package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/mail"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/ratelimit"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

const (
	MinPasswordLength = 6

	SignoutMessage      = "Goodbye!"
	RequestResetMessage = "Thanks!"
)

// Limits groups the optional throttles of UserService. Nil members admit
// everything.
type Limits struct {
	Reset  ratelimit.Limiter
	Signin ratelimit.Limiter
}

// UserService provides the account flows:
//   - Signup / Signin / Signout: session lifecycle
//   - RequestReset / ResetPassword: password reset by email token
//   - UpdatePermissions / Users / Me: account administration and lookup
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.SessionCodec
	hasher      *auth.PasswordHasher
	mailer      mail.Transport
	limits      Limits
	frontendURL string
	logger      logging.Logger
	now         func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	mailer mail.Transport, limits Limits, logger logging.Logger) *UserService {

	if limits.Reset == nil {
		limits.Reset = ratelimit.Noop{}
	}
	if limits.Signin == nil {
		limits.Signin = ratelimit.Noop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		codec:       auth.NewSessionCodec([]byte(cfg.SecretKey)),
		hasher:      auth.NewPasswordHasher(),
		mailer:      mailer,
		limits:      limits,
		frontendURL: cfg.FrontendURL,
		logger:      logger.With("module", "users"),
		now:         time.Now,
	}
}

// Codec exposes the session codec so the transport can resolve cookies.
func (s *UserService) Codec() *auth.SessionCodec { return s.codec }

// Signup creates an account with the USER permission and opens a session.
func (s *UserService) Signup(ctx context.Context, rc *Request, email, name, password string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Permissions:  []models.Permission{models.PermissionUser},
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email %s is already registered", common.ErrValidation, email)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if err := s.openSession(rc, user.ID); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "signup", "user_id", user.ID)
	return user, nil
}

// Signin checks credentials and opens a session. An unknown email is
// reported exactly like a wrong password; the returned error still matches
// common.ErrorNotFound for callers that need to tell them apart.
//
// Only failed attempts are counted, per email and client address, and a
// successful signin clears the count.
func (s *UserService) Signin(ctx context.Context, rc *Request, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	key := signinKey(email, rc.clientIP())

	if err := s.limits.Signin.Check(ctx, key); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			s.signinFailed(ctx, key)
			return nil, unknownAccountError{}
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.signinFailed(ctx, key)
		return nil, common.ErrInvalidCredentials
	}

	if err := s.openSession(rc, user.ID); err != nil {
		return nil, err
	}
	if err := s.limits.Signin.Reset(ctx, key); err != nil {
		s.logger.Warn(ctx, "signin limiter reset failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Signout drops the session cookie. It never fails.
func (s *UserService) Signout(ctx context.Context, rc *Request) string {
	rc.clearSession()
	return SignoutMessage
}

// RequestReset mails a fresh reset link to the account owner. The token is
// never returned to the caller.
func (s *UserService) RequestReset(ctx context.Context, rc *Request, email string) (string, error) {
	email = normalizeEmail(email)

	if err := s.limits.Reset.Allow(ctx, email); err != nil {
		return "", err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", fmt.Errorf("%w: no such user found for email %s", common.ErrorNotFound, email)
		}
		return "", fmt.Errorf("error searching user: %w", err)
	}

	token, expiry, err := auth.GenerateResetToken(s.now())
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return "", fmt.Errorf("error storing reset token: %w", err)
	}

	msg, err := mail.PasswordReset(user.Email, s.frontendURL, token)
	if err != nil {
		return "", err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "reset mail failed", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: %v", common.ErrMailDelivery, err)
	}

	s.logger.Info(ctx, "reset requested", "user_id", user.ID)
	return RequestResetMessage, nil
}

// ResetPassword consumes a reset token, sets the new password and opens a
// session. The token lookup and the update run in one transaction with the
// row locked, so a token can be spent only once.
func (s *UserService) ResetPassword(ctx context.Context, rc *Request, password, confirmPassword, token string) (*models.User, error) {
	if password != confirmPassword {
		return nil, fmt.Errorf("%w: your passwords don't match", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	now := s.now()
	var user *models.User

	err := dbx.WithTx(ctx, s.db, dbx.LockingTx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.FindByResetToken(ctx, token, auth.ResetTokenNotBefore(now))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("error searching reset token: %w", err)
		}
		if u.ResetToken == nil || u.ResetTokenExpiry == nil ||
			!auth.ResetTokenValid(token, *u.ResetToken, *u.ResetTokenExpiry, now) {
			return common.ErrInvalidOrExpiredToken
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user, err = repo.UpdatePassword(ctx, u.ID, hash)
		if err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.openSession(rc, user.ID); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return user, nil
}

// UpdatePermissions replaces the permission set of userID. The caller needs
// ADMIN or PERMISSIONUPDATE.
func (s *UserService) UpdatePermissions(ctx context.Context, rc *Request, userID string, permissions []string) (*models.User, error) {
	caller, err := s.caller(ctx, rc)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(caller, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return nil, err
	}

	perms, err := auth.ParsePermissions(permissions)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).UpdatePermissions(ctx, userID, perms)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user %s", common.ErrorNotFound, userID)
		}
		return nil, fmt.Errorf("error updating permissions: %w", err)
	}

	s.logger.Info(ctx, "permissions updated", "by", caller.ID, "user_id", user.ID, "permissions", perms)
	return user, nil
}

// Me returns the caller, or nil for an anonymous request.
func (s *UserService) Me(ctx context.Context, rc *Request) (*models.User, error) {
	if !rc.authenticated() {
		return nil, nil
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, rc.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}

// Users lists every account. The caller needs ADMIN or PERMISSIONUPDATE.
func (s *UserService) Users(ctx context.Context, rc *Request) ([]*models.User, error) {
	caller, err := s.caller(ctx, rc)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(caller, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx)
}

func (s *UserService) openSession(rc *Request, userID string) error {
	token, err := s.codec.Issue(userID)
	if err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	rc.setSession(token, common.SessionMaxAge)
	return nil
}

// signinFailed records a failed attempt. Crossing the limit here only affects
// the next attempt.
func (s *UserService) signinFailed(ctx context.Context, key string) {
	err := s.limits.Signin.Allow(ctx, key)
	if err != nil && !errors.Is(err, common.ErrRateLimited) {
		s.logger.Warn(ctx, "signin limiter failed", "error", err)
	}
}

func signinKey(email, clientIP string) string {
	if clientIP == "" {
		return email
	}
	return email + "|" + clientIP
}

func (s *UserService) caller(ctx context.Context, rc *Request) (*models.User, error) {
	return loadCaller(ctx, s.repomanager.Users(s.db), rc)
}

// unknownAccountError reads as a wrong password but unwraps to both
// ErrInvalidCredentials and ErrorNotFound.
type unknownAccountError struct{}

func (unknownAccountError) Error() string { return common.ErrInvalidCredentials.Error() }

func (unknownAccountError) Unwrap() []error {
	return []error{common.ErrInvalidCredentials, common.ErrorNotFound}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrValidation, auth.MaxPasswordBytes)
	}
	return nil
}
