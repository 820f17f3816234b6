package model

import "time"

// User represents a registered account.
//
// GitHub OAuth is the identity provider, so the primary external identifier
// is the GitHub user ID. We still generate our own internal string ID (xid)
// so bookmark ownership isn't tied to a third party's numbering scheme.
type User struct {
	ID        string `json:"id"`
	GitHubID  int64  `json:"githubId"`
	Login     string `json:"login"`
	Email     string `json:"email"` // primary public email, may be empty
	AvatarURL string `json:"avatarUrl"`

	// APITokenHash is the bcrypt hash of the user's current API token
	// secret, or "" when no token has been minted. Never serialized.
	APITokenHash string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
