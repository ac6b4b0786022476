package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/auth"
)

// SessionService issues and verifies session tokens.
//
//	AuthHandler (HTTP) → SessionService (business rules) → TokenService (JWT)
//
// Sessions are stateless: the identity lives in the signed token, nothing is
// stored server side. An identity reaches Issue either straight from the
// client (POST /jwt) or from GitHub after an OAuth login.
type SessionService struct {
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewSessionService(tokens *auth.TokenService, logger *slog.Logger) *SessionService {
	return &SessionService{
		tokens: tokens,
		logger: logger,
	}
}

// SessionRequest is the body of POST /jwt. Clients send their whole user
// object; only email is read. The identity is opaque: it is compared, never
// parsed, so anything non-blank is accepted.
type SessionRequest struct {
	Email string `json:"email" validate:"notblank,max=254"`
}

// Session is a freshly issued token and how long it stays valid.
type Session struct {
	Identity string
	Token    string
	TTL      time.Duration
}

// Issue validates the request and signs a session for its email.
func (s *SessionService) Issue(_ context.Context, req SessionRequest) (*Session, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.issue(req.Email, "jwt")
}

// IssueForGitHub signs a session for the email of a GitHub account that has
// completed the OAuth flow.
func (s *SessionService) IssueForGitHub(_ context.Context, ghUser *auth.GitHubUser) (*Session, error) {
	if ghUser == nil || ghUser.Email == "" {
		return nil, apperror.Unauthenticated("GitHub account has no usable email")
	}
	s.logger.Info("user authenticated via GitHub",
		slog.Int64("githubID", ghUser.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(ghUser.Email, "github")
}

func (s *SessionService) issue(identity, via string) (*Session, error) {
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", identity, err)
	}

	s.logger.Info("session issued",
		slog.String("identity", identity),
		slog.String("via", via),
	)
	return &Session{Identity: identity, Token: token, TTL: s.tokens.TTL()}, nil
}
