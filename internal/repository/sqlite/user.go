package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or updates a user keyed by GitHub ID. An existing user
// keeps their internal ID (bookmark ownership hangs off it); only the
// profile fields are refreshed on subsequent logins.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET login = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.Login, user.Email, user.AvatarURL, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.GitHubID, user.Login, user.Email, user.AvatarURL,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, email, avatar_url, api_token_hash, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.GitHubID, &u.Login, &u.Email, &u.AvatarURL, &u.APITokenHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}

// SetAPITokenHash replaces the stored API token hash for a user.
func (db *DB) SetAPITokenHash(ctx context.Context, id, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET api_token_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting API token hash for user %s: %w", id, err)
	}
	return checkAffected(res, "user", id)
}
