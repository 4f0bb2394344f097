package installation

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no mapping exists for a team.
var ErrNotFound = errors.New("team mapping not found")

// Repository persists team mappings.
type Repository interface {
	// Upsert writes every field of m in one statement, replacing any
	// existing mapping for m.TeamID.
	Upsert(ctx context.Context, m *TeamMapping) error
	GetByTeamID(ctx context.Context, teamID string) (*TeamMapping, error)
	List(ctx context.Context) ([]TeamMapping, error)
}
