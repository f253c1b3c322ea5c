package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/otp"
	"github.com/toptuitions/toptuitions/internal/repository"
	"github.com/toptuitions/toptuitions/internal/session"
	"github.com/toptuitions/toptuitions/internal/validate"
)

// errBadCredentials is deliberately vague: it does not reveal whether the
// email exists.
var errBadCredentials = apperror.Unauthorized("invalid email or password")

var errBadCode = apperror.Unauthorized("invalid or expired code")

// GoogleExchanger is the part of auth.GoogleProvider the service uses.
type GoogleExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthOptions holds the optional parts of AuthService.
type AuthOptions struct {
	Google      GoogleExchanger // nil disables Google sign-in
	CountryCode string          // prefix for OTP SMS, e.g. "+91"
	OTPTTL      time.Duration
}

// AuthService signs users in with any of the three methods and rebuilds
// sessions from tokens.
//
// ACCOUNT KEYS:
// A user document is found by exactly one key, depending on how it was
// created: the lowercased email (password sign-in), the Google subject ID,
// or the 10-digit phone number. The methods do not link accounts, so the
// same person signing in with Google and with a phone gets two users.
//
// The role is chosen once, at creation. A returning user keeps the stored
// role whatever userType the sign-in request carries.
type AuthService struct {
	users     repository.UserRepository
	otps      repository.OTPRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	sms       otp.Sender
	opts      AuthOptions
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	otps repository.OTPRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	sms otp.Sender,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	if opts.CountryCode == "" {
		opts.CountryCode = "+91"
	}
	return &AuthService{
		users:     users,
		otps:      otps,
		tokens:    tokens,
		passwords: passwords,
		sms:       sms,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult is what a successful sign-in hands back to the handler: the
// user and the JWT to put in the cookie.
type AuthResult struct {
	User  *model.User
	Token string
}

// TokenTTL is the lifetime to give the session cookie.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

type RegisterInput struct {
	Email    string     `json:"email"    validate:"required,email,max=254"`
	Password string     `json:"password" validate:"required,min=8,max=72,bcrypt"`
	Name     string     `json:"name"     validate:"required,max=100"`
	Role     model.Role `json:"userType" validate:"required,role"`
}

// Register creates an email + password account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.CreateAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAccount validates in and stores a new email + password user without
// signing it in. The admin CLI uses it directly.
func (s *AuthService) CreateAccount(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Profile:      model.Profile{Name: in.Name},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", in.Email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("method", "password"),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks an email + password pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", in.Email, err)
	}

	// Accounts created through Google or phone have no password.
	if user.PasswordHash == "" {
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			s.logger.Info("login failed", slog.String("userID", user.ID))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// GoogleEnabled reports whether Google credentials are configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.opts.Google != nil
}

// GoogleAuthURL returns the consent page to redirect to.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.opts.Google == nil {
		return "", apperror.Unavailable("Google sign-in is not configured")
	}
	return s.opts.Google.AuthURL(state), nil
}

// LoginGoogle completes the OAuth callback. Returning users keep their role;
// a first sign-in creates the account with role (student when role is not
// a valid role).
func (s *AuthService) LoginGoogle(ctx context.Context, code string, role model.Role) (*AuthResult, error) {
	if s.opts.Google == nil {
		return nil, apperror.Unavailable("Google sign-in is not configured")
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "missing authorization code")
	}

	gu, err := s.opts.Google.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("google exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("Google sign-in failed")
	}

	user, err := s.users.GetUserByGoogleSub(ctx, gu.Sub)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up google user: %w", err)
	}

	if !role.Valid() {
		role = model.RoleStudent
	}
	user = &model.User{
		Email:     normalizeEmail(gu.Email),
		GoogleSub: gu.Sub,
		Role:      role,
		Profile:   model.Profile{Name: gu.Name, PhotoURL: gu.Picture},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "an account with this email already exists; sign in with your password",
			}
		}
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("method", "google"),
		slog.String("role", string(user.Role)),
	)
	return s.issue(user)
}

type PhoneStartInput struct {
	Phone string     `json:"phone"    validate:"required,phone10"`
	Role  model.Role `json:"userType" validate:"omitempty,role"`
}

// PhoneChallenge is returned to the client after a code was sent. The code
// itself never leaves the server except by SMS.
type PhoneChallenge struct {
	ID        string    `json:"challengeId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StartPhone creates a challenge and texts the code.
func (s *AuthService) StartPhone(ctx context.Context, in PhoneStartInput) (*PhoneChallenge, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	hash, err := s.passwords.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing code: %w", err)
	}

	c := &model.OTPChallenge{
		Phone:     in.Phone,
		Role:      in.Role,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(s.opts.OTPTTL),
	}
	if err := s.otps.CreateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("service/auth: storing challenge: %w", err)
	}

	msg := otp.CodeMessage(otp.E164(s.opts.CountryCode, in.Phone), code)
	if err := s.sms.Send(ctx, msg); err != nil {
		s.logger.Error("sms delivery failed",
			slog.String("challengeID", c.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("could not send the code, try again later")
	}

	return &PhoneChallenge{ID: c.ID, ExpiresAt: c.ExpiresAt}, nil
}

type PhoneVerifyInput struct {
	ChallengeID string `json:"challengeId" validate:"required"`
	Code        string `json:"code"        validate:"required,otp6"`
}

// VerifyPhone checks the code. A wrong, expired, exhausted or already used
// challenge yields the same 401 and changes nothing but the attempt counter.
//
// ORDER OF CHECKS:
//  1. Usable: not consumed, not expired, fewer than MaxOTPAttempts misses.
//  2. Code matches the stored hash; a miss is counted.
//  3. ConsumeChallenge marks it used. It is conditional in SQL, so of two
//     concurrent correct submissions only one gets past this step.
//  4. The phone's user is loaded or created with the challenge's role.
func (s *AuthService) VerifyPhone(ctx context.Context, in PhoneVerifyInput) (*AuthResult, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	c, err := s.otps.GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCode
		}
		return nil, fmt.Errorf("service/auth: loading challenge: %w", err)
	}

	now := s.now()
	if !c.Usable(now) {
		return nil, errBadCode
	}

	if err := s.passwords.Verify(c.CodeHash, in.Code); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			return nil, fmt.Errorf("service/auth: verifying code: %w", err)
		}
		if _, aerr := s.otps.RecordFailedAttempt(ctx, c.ID); aerr != nil {
			s.logger.Error("recording otp attempt", slog.String("error", aerr.Error()))
		}
		return nil, errBadCode
	}

	if err := s.otps.ConsumeChallenge(ctx, c.ID, now); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errBadCode
		}
		return nil, fmt.Errorf("service/auth: consuming challenge: %w", err)
	}

	user, err := s.users.GetUserByPhone(ctx, c.Phone)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Phone:   c.Phone,
			Role:    c.Role,
			Profile: model.Profile{Phone: c.Phone},
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating phone user: %w", err)
		}
		s.logger.Info("user registered",
			slog.String("userID", user.ID),
			slog.String("method", "phone"),
			slog.String("role", string(user.Role)),
		)
	default:
		return nil, fmt.Errorf("service/auth: looking up phone user: %w", err)
	}

	return s.issue(user)
}

// Session rebuilds the session state for userID. It never returns nil. When
// the user document cannot be loaded the session fails closed: LoggedOut,
// with the cause kept in Err.
func (s *AuthService) Session(ctx context.Context, userID string) *session.State {
	state := session.New()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("session restore failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apperror.ErrNotFound) {
			state.Fail(errors.New("user profile not found"))
		} else {
			state.Fail(errors.New("could not load user profile"))
		}
		return state
	}

	profile := user.Profile
	if err := state.Login(session.LoginPayload{User: user.Ref(), Role: user.Role, Profile: &profile}); err != nil {
		s.logger.Error("session restore: invalid user document",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		state.Fail(err)
	}
	return state
}

// CleanupChallenges deletes expired OTP challenges.
func (s *AuthService) CleanupChallenges(ctx context.Context) (int64, error) {
	return s.otps.DeleteExpiredChallenges(ctx, s.now())
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
