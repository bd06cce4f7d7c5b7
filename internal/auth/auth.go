package auth

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/eshaffer321/pluginhub-go/internal/session"
	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/eshaffer321/pluginhub-go/internal/types"
	"github.com/pkg/errors"
)

const (
	loginEndpoint          = "/auth/login"
	registerEndpoint       = "/auth/register"
	verifyEmailEndpoint    = "/auth/verifyemail"
	forgotPasswordEndpoint = "/auth/forgotpassword"
	resetPasswordEndpoint  = "/auth/resetpassword"
	logoutEndpoint         = "/auth/logout"
	meEndpoint             = "/user/me"

	minPasswordLength = 8
)

// Providers accepted by ExchangeOAuthCode
var Providers = []string{"google", "github"}

// Executor performs API requests against a session
type Executor interface {
	Execute(ctx context.Context, req *transport.Request, result interface{}) error
	Session() *session.Session
}

// Service handles authentication operations. Every call it makes opts
// out of the refresh-on-401 path: a 401 here means bad credentials,
// not an expired token.
type Service struct {
	exec   Executor
	logger types.Logger
}

// NewService creates a new auth service
func NewService(exec Executor, logger types.Logger) *Service {
	return &Service{
		exec:   exec,
		logger: logger,
	}
}

// RegisterParams are the fields of the sign-up form
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Referral string `json:"referralCode,omitempty"`
}

// authResponse is the data of every endpoint that may issue a session
type authResponse struct {
	AccessToken string      `json:"accessToken"`
	User        *types.User `json:"user"`
}

// Login performs email/password authentication and stores the access token
func (s *Service) Login(ctx context.Context, email, password string) (*types.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, types.Invalid("password", "is required")
	}

	// Log request
	if s.logger != nil {
		s.logger.Debug("Login request", "email", email)
	}

	var resp authResponse
	err := s.post(ctx, loginEndpoint, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if types.StatusCode(err) == http.StatusUnauthorized {
			return nil, &types.Error{
				Code:       "LOGIN_FAILED",
				Message:    err.Error(),
				StatusCode: http.StatusUnauthorized,
				Err:        types.ErrLoginFailed,
			}
		}
		return nil, errors.Wrap(err, "login request failed")
	}

	if resp.AccessToken == "" {
		return nil, errors.New("no token in login response")
	}

	if err := s.exec.Session().SetToken(resp.AccessToken); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("Login successful", "email", email)
	}

	return resp.User, nil
}

// Register creates an account. When the backend signs the user in
// immediately the returned token is stored; accounts that must verify
// their email first come back without one.
func (s *Service) Register(ctx context.Context, params *RegisterParams) (*types.User, error) {
	if params == nil {
		return nil, types.Invalid("params", "are required")
	}
	params.Email = strings.TrimSpace(params.Email)
	params.Name = strings.TrimSpace(params.Name)

	if params.Name == "" {
		return nil, types.Invalid("name", "is required")
	}
	if err := validateEmail(params.Email); err != nil {
		return nil, err
	}
	if len(params.Password) < minPasswordLength {
		return nil, types.Invalid("password", "must be at least %d characters", minPasswordLength)
	}

	var resp authResponse
	if err := s.post(ctx, registerEndpoint, params, &resp); err != nil {
		return nil, errors.Wrap(err, "registration failed")
	}

	if err := s.storeIfIssued(resp.AccessToken); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("Registration successful", "email", params.Email, "signedIn", resp.AccessToken != "")
	}

	return resp.User, nil
}

// VerifyEmail confirms an email address with the token from the
// verification mail, storing the session the backend issues.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*types.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, types.Invalid("token", "is required")
	}

	var resp authResponse
	if err := s.post(ctx, verifyEmailEndpoint, map[string]string{"token": token}, &resp); err != nil {
		return nil, errors.Wrap(err, "email verification failed")
	}

	if err := s.storeIfIssued(resp.AccessToken); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ExchangeOAuthCode trades the authorization code from a provider's
// consent redirect for a session.
func (s *Service) ExchangeOAuthCode(ctx context.Context, provider, code string) (*types.User, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !isProvider(provider) {
		return nil, types.Invalid("provider", "unsupported OAuth provider %q", provider)
	}
	if code == "" {
		return nil, types.Invalid("code", "is required")
	}

	var resp authResponse
	if err := s.post(ctx, "/auth/"+provider+"/callback", map[string]string{"code": code}, &resp); err != nil {
		return nil, errors.Wrapf(err, "%s sign-in failed", provider)
	}

	if resp.AccessToken == "" {
		return nil, errors.New("no token in OAuth response")
	}
	if err := s.exec.Session().SetToken(resp.AccessToken); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("OAuth sign-in successful", "provider", provider)
	}

	return resp.User, nil
}

// ForgotPassword asks the backend to mail a password reset link
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := s.post(ctx, forgotPasswordEndpoint, map[string]string{"email": email}, nil); err != nil {
		return errors.Wrap(err, "password reset request failed")
	}
	return nil
}

// ResetPassword sets a new password using the token from the reset link
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return types.Invalid("token", "is required")
	}
	if len(password) < minPasswordLength {
		return types.Invalid("password", "must be at least %d characters", minPasswordLength)
	}

	err := s.post(ctx, resetPasswordEndpoint, map[string]string{
		"token":    token,
		"password": password,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "password reset failed")
	}
	return nil
}

// Logout ends the server-side session and erases the local token and
// refresh cookie. Both are erased even when the logout call fails.
func (s *Service) Logout(ctx context.Context) error {
	callErr := s.post(ctx, logoutEndpoint, nil, nil)

	if err := s.exec.Session().ClearToken(); err != nil {
		return err
	}
	if err := s.exec.Session().ClearCookies(); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("Logged out")
	}

	if callErr != nil {
		return errors.Wrap(callErr, "logout request failed")
	}
	return nil
}

// Me returns the signed-in user's profile. Unlike the other calls it goes
// through the normal refresh path.
func (s *Service) Me(ctx context.Context) (*types.User, error) {
	if !s.exec.Session().IsAuthenticated() {
		return nil, types.ErrNotAuthenticated
	}

	var user types.User
	err := s.exec.Execute(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   meEndpoint,
	}, &user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile")
	}
	return &user, nil
}

func (s *Service) post(ctx context.Context, path string, body, result interface{}) error {
	return s.exec.Execute(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Policy: transport.AuthNoRefresh,
	}, result)
}

func (s *Service) storeIfIssued(token string) error {
	if token == "" {
		return nil
	}
	return s.exec.Session().SetToken(token)
}

func validateEmail(email string) error {
	if email == "" {
		return types.Invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return types.Invalid("email", "invalid address %q", email)
	}
	return nil
}

func isProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}
