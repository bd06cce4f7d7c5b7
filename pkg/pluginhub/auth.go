package pluginhub

import (
	"context"

	"github.com/eshaffer321/pluginhub-go/internal/auth"
)

// authService implements AuthService on top of internal/auth
type authService struct {
	client *Client
	svc    *auth.Service
}

func newAuthService(c *Client) *authService {
	return &authService{
		client: c,
		svc:    auth.NewService(clientExecutor{client: c}, c.options.Logger),
	}
}

// Login performs email/password authentication and stores the token
func (s *authService) Login(ctx context.Context, email, password string) (*User, error) {
	return s.svc.Login(ctx, email, password)
}

// Register creates an account
func (s *authService) Register(ctx context.Context, params *RegisterParams) (*User, error) {
	return s.svc.Register(ctx, params)
}

// VerifyEmail confirms an email address
func (s *authService) VerifyEmail(ctx context.Context, token string) (*User, error) {
	return s.svc.VerifyEmail(ctx, token)
}

// ExchangeOAuthCode trades a provider authorization code for a session
func (s *authService) ExchangeOAuthCode(ctx context.Context, provider, code string) (*User, error) {
	return s.svc.ExchangeOAuthCode(ctx, provider, code)
}

// ForgotPassword requests a password reset mail
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	return s.svc.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password
func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	return s.svc.ResetPassword(ctx, token, password)
}

// Logout ends the session
func (s *authService) Logout(ctx context.Context) error {
	return s.svc.Logout(ctx)
}

// Me returns the signed-in user's profile
func (s *authService) Me(ctx context.Context) (*User, error) {
	return s.svc.Me(ctx)
}

// IsAuthenticated reports whether an access token is stored
func (s *authService) IsAuthenticated() bool {
	return s.client.IsAuthenticated()
}
