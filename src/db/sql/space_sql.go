package db

import (
	"context"
	"errors"
	"fmt"

	"spendwatch-server/src/anomaly"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func GetSpaceRole(ctx context.Context, pool *pgxpool.Pool, spaceID, userID string) (anomaly.Role, error) {
	query := `
		SELECT role
		FROM space_members
		WHERE space_id = $1 AND user_id = $2
	`
	var role string
	err := pool.QueryRow(ctx, query, spaceID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return anomaly.Role(role), nil
}

// CheckRole reports whether role satisfies minimum.
func CheckRole(role, minimum anomaly.Role) error {
	if role.Rank() == 0 || role.Rank() < minimum.Rank() {
		return fmt.Errorf("role %q below %q: %w", role, minimum, anomaly.ErrForbidden)
	}
	return nil
}

// SpaceAccess verifies space membership against the space_members table.
type SpaceAccess struct {
	pool *pgxpool.Pool
}

func NewSpaceAccess(pool *pgxpool.Pool) *SpaceAccess {
	return &SpaceAccess{pool: pool}
}

func (s *SpaceAccess) VerifySpaceAccess(ctx context.Context, userID, spaceID string, minimum anomaly.Role) error {
	role, err := GetSpaceRole(ctx, s.pool, spaceID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s is not a member of space %s: %w", userID, spaceID, anomaly.ErrForbidden)
		}
		return fmt.Errorf("failed to look up space role: %w", err)
	}
	return CheckRole(role, minimum)
}
