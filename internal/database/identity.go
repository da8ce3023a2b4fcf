package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/hydromet/datanode/internal/auth"
	"github.com/hydromet/datanode/internal/selector"
	"github.com/jackc/pgx/v5"
)

// ErrUserNotFound is returned when no user exists for a username.
var ErrUserNotFound = errors.New("user not found")

// IdentityByUsername resolves the full caller identity: the user row, its
// newest non-revoked public key if any, its permissions and its measurement
// access rules.
func (db *Manager) IdentityByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	identity := auth.Identity{Username: username}
	err := db.dbpool.QueryRow(ctx,
		`SELECT id, COALESCE(operator_id, 0) FROM users WHERE username = $1`,
		username,
	).Scan(&identity.UserID, &identity.OperatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %q: %w", username, err)
	}

	// Only a non-revoked key is ever attached to the identity.
	var publicKey string
	err = db.dbpool.QueryRow(ctx,
		`SELECT public_key FROM public_keys
		 WHERE user_id = $1 AND revoked = FALSE
		 ORDER BY created_at DESC LIMIT 1`,
		identity.UserID,
	).Scan(&publicKey)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query public key for user %q: %w", username, err)
	}
	identity.PublicKeyPEM = []byte(publicKey)

	permissions, err := db.permissions(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	identity.Permissions = permissions

	rules, err := db.accessRules(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	identity.AccessRules = rules

	return &identity, nil
}

func (db *Manager) permissions(ctx context.Context, userID int) ([]string, error) {
	rows, err := db.dbpool.Query(ctx,
		`SELECT p.name FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}
	return permissions, nil
}

func (db *Manager) accessRules(ctx context.Context, userID int) ([]auth.AccessRule, error) {
	rows, err := db.dbpool.Query(ctx,
		`SELECT operator_id, point_type, monitoring_point_selector, observed_property_selector
		 FROM measurement_access_rules WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query access rules: %w", err)
	}
	defer rows.Close()

	var rules []auth.AccessRule
	for rows.Next() {
		var rule auth.AccessRule
		var pointType string
		if err := rows.Scan(&rule.OperatorID, &pointType, &rule.PointSelector, &rule.PropertySelector); err != nil {
			return nil, fmt.Errorf("failed to scan access rule: %w", err)
		}
		rule.PointType = selector.PointType(pointType)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read access rules: %w", err)
	}
	return rules, nil
}
