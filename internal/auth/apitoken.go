package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// API tokens let extension and CLI clients authenticate with a single
// Authorization header instead of the OAuth dance. A token looks like
//
//	lks_<userID>.<secret>
//
// The user ID rides along in cleartext so verification is one user lookup
// plus one bcrypt compare; only the bcrypt hash of the secret is stored.
// Minting a new token replaces the previous one.

const apiTokenPrefix = "lks_"

// secretBytes of randomness per token. 32 hex-encoded bytes keeps the
// secret comfortably under bcrypt's 72-byte input limit.
const secretBytes = 32

// defaultCost is the bcrypt work factor. Tokens are verified on every
// bearer-authenticated request, so this sits lower than a login-only hash
// would; cost 10 is still far beyond brute-forceable for a 256-bit secret.
const defaultCost = 10

// APITokenService mints and verifies API tokens.
type APITokenService struct {
	cost int
}

// NewAPITokenService creates a service with the default bcrypt cost.
func NewAPITokenService() *APITokenService {
	return &APITokenService{cost: defaultCost}
}

// NewAPITokenServiceForTest creates a service with a reduced cost so test
// suites don't burn hundreds of milliseconds per hash.
func NewAPITokenServiceForTest(cost int) *APITokenService {
	return &APITokenService{cost: cost}
}

// Mint generates a fresh token for userID. It returns the full plaintext
// token (shown to the user exactly once) and the bcrypt hash of its secret
// part (what gets stored).
func (s *APITokenService) Mint(userID string) (token, hash string, err error) {
	if userID == "" {
		return "", "", errors.New("auth: minting token for empty user ID")
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("auth: generating token secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", "", fmt.Errorf("auth: hashing token secret: %w", err)
	}

	return apiTokenPrefix + userID + "." + secret, string(hashed), nil
}

// Verify checks a presented secret against the stored hash.
func (s *APITokenService) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid API token")
		}
		return fmt.Errorf("auth: comparing token hash: %w", err)
	}
	return nil
}

// ParseAPIToken splits a presented token into its user ID and secret parts.
// It only checks shape; Verify decides whether the secret is right.
func ParseAPIToken(token string) (userID, secret string, err error) {
	rest, ok := strings.CutPrefix(token, apiTokenPrefix)
	if !ok {
		return "", "", errors.New("auth: not an API token")
	}

	userID, secret, ok = strings.Cut(rest, ".")
	if !ok || userID == "" || secret == "" {
		return "", "", errors.New("auth: malformed API token")
	}

	return userID, secret, nil
}
