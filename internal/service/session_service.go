package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTokenTTL is how long a backend token is kept when none is configured.
const DefaultTokenTTL = 24 * time.Hour

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpRe   = regexp.MustCompile(`^\d{4,8}$`)
)

// tokenKeys are the payload keys a sign-in answer may carry the token under.
var tokenKeys = []string{"token", "accessToken", "access_token", "authToken", "jwt"}

var signinPaths = map[domain.Role]string{
	domain.RoleUser:     ports.PathUserSignin,
	domain.RoleSubAdmin: ports.PathSubAdminSignin,
	domain.RoleAdmin:    ports.PathAdminSignin,
}

var verifyPaths = map[domain.Role]string{
	domain.RoleSubAdmin: ports.PathSubAdminVerify,
	domain.RoleAdmin:    ports.PathAdminVerify,
}

// SignInRequest carries login credentials.
type SignInRequest struct {
	Email    string
	Password string
}

// VerifyRequest carries the one-time code sent by e-mail.
type VerifyRequest struct {
	Email string
	OTP   string
}

// SignUpRequest registers a new user.
type SignUpRequest struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	ReferralCode    string
}

// SignInResult is the outcome of a login step. When OTPRequired is set no
// token was stored yet and the flow continues with Verify.
type SignInResult struct {
	SessionID    string      `json:"-"`
	SessionToken string      `json:"session_token,omitempty"`
	ExpiresAt    int64       `json:"expires_at,omitempty"`
	Role         domain.Role `json:"role"`
	OTPRequired  bool        `json:"otp_required"`
	Message      string      `json:"message"`
}

// SessionService runs the login flows. It is the only writer of backend
// tokens.
type SessionService struct {
	gw       ports.Gateway
	store    ports.TokenStore
	tokens   ports.TokenService
	desk     *Desk
	tokenTTL time.Duration
	log      zerolog.Logger
}

// NewSessionService creates a session service. desk may be nil.
func NewSessionService(gw ports.Gateway, store ports.TokenStore, tokens ports.TokenService, desk *Desk, tokenTTL time.Duration, log zerolog.Logger) *SessionService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &SessionService{gw: gw, store: store, tokens: tokens, desk: desk, tokenTTL: tokenTTL, log: log}
}

// Open binds an existing session id, typically taken from a verified JWT.
func (s *SessionService) Open(sessionID string) *Session {
	return NewSession(sessionID, s.store)
}

// SignIn starts a login for role. A user is signed in directly; admin and
// sub-admin receive an OTP and finish with Verify. sess may be nil, in which
// case a new session is created on success.
func (s *SessionService) SignIn(ctx context.Context, sess *Session, role domain.Role, req SignInRequest) (*SignInResult, error) {
	path, ok := signinPaths[role]
	if !ok {
		return nil, apperror.Validation("Unknown role: " + string(role))
	}
	email := strings.TrimSpace(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, apperror.Validation("Password is required.")
	}

	env, err := s.gw.Do(ctx, credsOf(sess), ports.RemoteRequest{
		Role:   role,
		Method: http.MethodPost,
		Path:   path,
		Body:   map[string]string{"email": email, "password": req.Password},
		Public: true,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, env.Err()
	}

	token := extractToken(env.Data)
	if token == "" {
		if role.UsesOTP() {
			return &SignInResult{Role: role, OTPRequired: true, Message: env.Message}, nil
		}
		return nil, apperror.ErrMalformedPayload(errors.New("sign-in answer carries no token"))
	}
	return s.establish(ctx, sess, role, token, env.Message)
}

// Verify completes the OTP step of an admin or sub-admin login.
func (s *SessionService) Verify(ctx context.Context, sess *Session, role domain.Role, req VerifyRequest) (*SignInResult, error) {
	path, ok := verifyPaths[role]
	if !ok {
		return nil, apperror.Validation("Role " + string(role) + " does not use OTP sign-in.")
	}
	email := strings.TrimSpace(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	otp := strings.TrimSpace(req.OTP)
	if err := validateOTP(otp); err != nil {
		return nil, err
	}

	env, err := s.gw.Do(ctx, credsOf(sess), ports.RemoteRequest{
		Role:   role,
		Method: http.MethodPost,
		Path:   path,
		Body:   map[string]string{"email": email, "otp": otp},
		Public: true,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, env.Err()
	}
	token := extractToken(env.Data)
	if token == "" {
		return nil, apperror.ErrMalformedPayload(errors.New("verify answer carries no token"))
	}
	return s.establish(ctx, sess, role, token, env.Message)
}

// SignUp registers a user account. The backend e-mails a code that is
// confirmed with VerifySignup.
func (s *SessionService) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		return "", apperror.Validation("Name is required.")
	}
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if len(req.Password) < 6 {
		return "", apperror.Validation("Password must be at least 6 characters.")
	}
	if req.Password != req.ConfirmPassword {
		return "", apperror.ErrPasswordMismatch()
	}

	body := map[string]string{"name": name, "email": email, "password": req.Password}
	if p := strings.TrimSpace(req.Phone); p != "" {
		body["phone"] = p
	}
	if r := strings.TrimSpace(req.ReferralCode); r != "" {
		body["referralCode"] = r
	}
	env, err := s.gw.Do(ctx, nil, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodPost,
		Path:   ports.PathUserSignup,
		Body:   body,
		Public: true,
	})
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", env.Err()
	}
	return env.Message, nil
}

// VerifySignup confirms a registration. If the backend signs the user in
// right away the token is stored like a normal login.
func (s *SessionService) VerifySignup(ctx context.Context, sess *Session, req VerifyRequest) (*SignInResult, error) {
	email := strings.TrimSpace(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	otp := strings.TrimSpace(req.OTP)
	if err := validateOTP(otp); err != nil {
		return nil, err
	}

	env, err := s.gw.Do(ctx, credsOf(sess), ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodPost,
		Path:   ports.PathUserVerifySignup,
		Body:   map[string]string{"email": email, "otp": otp},
		Public: true,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, env.Err()
	}
	if token := extractToken(env.Data); token != "" {
		return s.establish(ctx, sess, domain.RoleUser, token, env.Message)
	}
	return &SignInResult{Role: domain.RoleUser, Message: env.Message}, nil
}

// Logout forgets the token of role and unmounts the views that used it.
// The other roles of the session stay signed in.
func (s *SessionService) Logout(ctx context.Context, sess *Session, role domain.Role) error {
	if _, ok := signinPaths[role]; !ok {
		return apperror.Validation("Unknown role: " + string(role))
	}
	if err := sess.Clear(ctx, role); err != nil {
		return err
	}
	if s.desk != nil {
		s.desk.ReleaseRole(sess.ID(), role)
	}
	s.log.Info().Str("session_id", sess.ID()).Str("role", string(role)).Msg("signed out")
	return nil
}

func (s *SessionService) establish(ctx context.Context, sess *Session, role domain.Role, token, message string) (*SignInResult, error) {
	if sess == nil {
		sess = NewSession(uuid.NewString(), s.store)
	}
	if err := sess.save(ctx, role, token, s.tokenTTL); err != nil {
		return nil, err
	}
	jwt, expiresAt, err := s.tokens.Generate(sess.ID())
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	s.log.Info().Str("session_id", sess.ID()).Str("role", string(role)).Msg("signed in")
	return &SignInResult{
		SessionID:    sess.ID(),
		SessionToken: jwt,
		ExpiresAt:    expiresAt.Unix(),
		Role:         role,
		Message:      message,
	}, nil
}

// extractToken finds the bearer token in a login answer: a bare string, one
// of tokenKeys, or the same under a "user" object.
func extractToken(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return ""
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	for _, k := range tokenKeys {
		var s string
		if v, ok := obj[k]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	if nested, ok := obj["user"]; ok {
		return extractToken(nested)
	}
	return ""
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.Validation("E-mail is required.")
	}
	if !emailRe.MatchString(email) {
		return apperror.Validation("Please enter a valid e-mail address.")
	}
	return nil
}

func validateOTP(otp string) error {
	if !otpRe.MatchString(otp) {
		return apperror.Validation("OTP must be 4 to 8 digits.")
	}
	return nil
}
