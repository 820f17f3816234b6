package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/linkstash/internal/auth"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

// AuthService orchestrates the GitHub OAuth callback, session token
// issuance, and API token minting/verification.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	apiTokens *auth.APITokenService
	logger    *slog.Logger
}

var _ auth.BearerVerifier = (*AuthService)(nil)

// NewAuthService wires an AuthService.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	apiTokens *auth.APITokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		apiTokens: apiTokens,
		logger:    logger,
	}
}

// AuthResult bundles the user record with the issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the OAuth callback: upsert the user record
// keyed by GitHub ID, then issue a session JWT for the internal user ID.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// MintAPIToken issues a fresh API token for the user and stores its hash,
// invalidating any previous token. The plaintext is returned exactly once.
func (s *AuthService) MintAPIToken(ctx context.Context, userID string) (string, error) {
	token, hash, err := s.apiTokens.Mint(userID)
	if err != nil {
		return "", fmt.Errorf("service/auth: minting API token: %w", err)
	}

	if err := s.users.SetAPITokenHash(ctx, userID, hash); err != nil {
		return "", fmt.Errorf("service/auth: storing API token hash: %w", err)
	}

	s.logger.Info("API token minted", slog.String("userID", userID))
	return token, nil
}

// VerifyAPIToken authenticates a presented bearer token. Implements
// auth.BearerVerifier for the middleware.
func (s *AuthService) VerifyAPIToken(ctx context.Context, token string) (string, error) {
	userID, secret, err := auth.ParseAPIToken(token)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/auth: unknown API token user: %w", err)
	}
	if user.APITokenHash == "" {
		return "", fmt.Errorf("service/auth: user has no API token")
	}

	if err := s.apiTokens.Verify(user.APITokenHash, secret); err != nil {
		return "", err
	}

	return user.ID, nil
}

// ValidateToken validates a session JWT and returns the user ID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
